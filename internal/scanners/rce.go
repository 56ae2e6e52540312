package scanners

import (
	"regexp"
	"strings"

	"github.com/rshield/rshield/internal/model"
)

// languageErrorSignatures are the per-language-family error patterns
// spec §4.6 calls for.
var languageErrorSignatures = map[string]*regexp.Regexp{
	"php":   regexp.MustCompile(`(?i)fatal error:.*on line|parse error:.*syntax error|warning:\s*(shell_exec|exec|system|passthru)\(\)`),
	"java":  regexp.MustCompile(`(?i)java\.lang\.(runtime|io)exception|at java\.lang\.(reflect|processbuilder)`),
	"python": regexp.MustCompile(`(?i)traceback \(most recent call last\)|subprocess\.calledprocesserror`),
	"node":  regexp.MustCompile(`(?i)node:internal/child_process|throw err;.*at childprocess`),
	"shell": regexp.MustCompile(`(?i)sh: \d+: .*not found|/bin/(ba)?sh: .*: command not found`),
}

// rcePayloadCatalogue is level-gated per spec §4.6's "level-gated
// payload catalogue (cmd, advanced_cmd, code)": level 1 only checks
// for plain command-injection markers, level 2 adds chained/subshell
// command markers, level 3 adds code-execution markers (eval, exec of
// arbitrary code rather than shell commands).
var rcePayloadCatalogue = map[int]*regexp.Regexp{
	1: regexp.MustCompile(`;\s*(cat|ls|whoami|id)\b|\|\s*(cat|ls|whoami|id)\b`),
	2: regexp.MustCompile("`[^`]+`|\\$\\([^)]+\\)|&&\\s*\\w+"),
	3: regexp.MustCompile(`(?i)\beval\(|\bexec\(|system\(.*\$|assert\(`),
}

// RCEScanner implements spec §4.6's remote-code-execution detector:
// a finding requires both a suspicious payload in a parameter (gated
// by Level) and a matching language-family error or marker in the
// response.
type RCEScanner struct {
	Level int
}

// Name implements Scanner.
func (RCEScanner) Name() string { return "rce" }

// Scan implements Scanner.
func (s RCEScanner) Scan(req model.InterceptedRequest, resp model.InterceptedResponse) []Result {
	if resp.Body == "" {
		return nil
	}
	level := s.Level
	if level <= 0 {
		level = 1
	}
	if level > 3 {
		level = 3
	}

	var matchedLang string
	for lang, sig := range languageErrorSignatures {
		if sig.MatchString(resp.Body) {
			matchedLang = lang
			break
		}
	}
	if matchedLang == "" {
		return nil
	}

	params := requestParams(req)
	var suspicious []string
	for lvl := 1; lvl <= level; lvl++ {
		pattern := rcePayloadCatalogue[lvl]
		for name, value := range params {
			if pattern.MatchString(value) {
				suspicious = append(suspicious, name)
			}
		}
	}
	if len(suspicious) == 0 {
		return nil
	}

	return []Result{{
		Matched:     true,
		RiskName:    "Remote Code Execution",
		RiskType:    "rce",
		Level:       model.RiskCritical,
		Description: "parameter(s) " + strings.Join(dedupe(suspicious), ", ") + " carry a command-injection payload and the response matches a " + matchedLang + " execution error",
		Evidence:    truncate(resp.Body, 300),
	}}
}

func dedupe(xs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
