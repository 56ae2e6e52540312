package scanners

import (
	"regexp"
	"strings"

	"github.com/rshield/rshield/internal/model"
)

// sqlErrorSignatures is the bank of database-error signatures spec
// §4.6 calls for, one set per engine family plus a generic fallback.
var sqlErrorSignatures = map[string]*regexp.Regexp{
	"mysql":      regexp.MustCompile(`(?i)you have an error in your sql syntax|warning:\s*mysql_|mysqli_sql_exception|supplied argument is not a valid mysql`),
	"mssql":      regexp.MustCompile(`(?i)unclosed quotation mark after the character string|microsoft sql server.*error|system\.data\.sqlclient`),
	"oracle":     regexp.MustCompile(`(?i)ora-\d{5}|oracle error|oracle.*driver`),
	"postgresql": regexp.MustCompile(`(?i)pg_query\(\)|postgresql.*error|unterminated quoted string`),
	"sqlite":     regexp.MustCompile(`(?i)sqlite3?::|sqlite_error|near ".*": syntax error`),
	"generic":    regexp.MustCompile(`(?i)sql syntax.*error|syntax error.*sql|unclosed quotation mark|quoted string not properly terminated`),
}

// sqlMetaCharacters flags parameter values worth correlating against
// an error signature — the presence of either alone is weak evidence,
// but both together is the scanner's trigger condition.
var sqlMetaCharacters = regexp.MustCompile(`['"();-]|--|/\*|\bOR\b|\bUNION\b|\bSELECT\b`)

// SQLiScanner implements spec §4.6's SQL-injection detector: regex
// match the response body against the error-signature bank and
// correlate with a request parameter value containing SQL
// meta-characters.
type SQLiScanner struct{}

// Name implements Scanner.
func (SQLiScanner) Name() string { return "sqli" }

// Scan implements Scanner.
func (SQLiScanner) Scan(req model.InterceptedRequest, resp model.InterceptedResponse) []Result {
	if resp.Body == "" {
		return nil
	}

	var matchedEngine string
	for engine, sig := range sqlErrorSignatures {
		if sig.MatchString(resp.Body) {
			matchedEngine = engine
			break
		}
	}
	if matchedEngine == "" {
		return nil
	}

	params := requestParams(req)
	var suspicious []string
	for name, value := range params {
		if sqlMetaCharacters.MatchString(value) {
			suspicious = append(suspicious, name)
		}
	}
	if len(suspicious) == 0 {
		return nil
	}

	return []Result{{
		Matched:     true,
		RiskName:    "SQL Injection",
		RiskType:    "sqli",
		Level:       model.RiskCritical,
		Description: "parameter(s) " + strings.Join(suspicious, ", ") + " contain SQL meta-characters and the response matches a " + matchedEngine + " error signature",
		Evidence:    truncate(resp.Body, 300),
	}}
}
