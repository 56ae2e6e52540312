package proxy

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// RuleOperator combines a rule with the ones preceding it.
type RuleOperator string

const (
	OpAnd RuleOperator = "and"
	OpOr  RuleOperator = "or"
)

// MatchType is the field a Rule's condition is evaluated against.
type MatchType string

const (
	MatchDomain     MatchType = "domain"
	MatchIP         MatchType = "ip"
	MatchProtocol   MatchType = "protocol"
	MatchMethod     MatchType = "method"
	MatchExtension  MatchType = "extension"
	MatchPath       MatchType = "path"
	MatchHeader     MatchType = "header"
	MatchStatusCode MatchType = "statusCode"
)

// Relationship inverts (or not) a condition's truth value.
type Relationship string

const (
	RelMatches    Relationship = "matches"
	RelNotMatches Relationship = "not_matches"
)

// Rule is one entry of the ordered rule list the interception gates
// evaluate (spec §4.3).
type Rule struct {
	Enabled      bool
	Operator     RuleOperator
	MatchType    MatchType
	Relationship Relationship
	Condition    string
	HeaderName   string // only consulted when MatchType == MatchHeader
}

// RequestFacts is the subset of a request the rule engine inspects.
type RequestFacts struct {
	Domain     string
	IP         string
	Protocol   string
	Method     string
	Extension  string
	Path       string
	Headers    map[string]string
	StatusCode int
}

// Evaluate runs the ordered rule list against facts. An empty list
// means intercept everything. The first enabled rule seeds the
// running boolean; each subsequent enabled rule combines with its own
// declared operator (spec §4.3).
func Evaluate(rules []Rule, facts RequestFacts) bool {
	var result bool
	seeded := false

	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		matched := r.matches(facts)

		if !seeded {
			result = matched
			seeded = true
			continue
		}

		switch r.Operator {
		case OpOr:
			result = result || matched
		default: // OpAnd, and the zero value
			result = result && matched
		}
	}

	if !seeded {
		return true
	}
	return result
}

func (r Rule) matches(facts RequestFacts) bool {
	var actual string
	switch r.MatchType {
	case MatchDomain:
		actual = facts.Domain
	case MatchIP:
		actual = facts.IP
	case MatchProtocol:
		actual = facts.Protocol
	case MatchMethod:
		actual = strings.ToUpper(facts.Method)
	case MatchExtension:
		actual = facts.Extension
	case MatchPath:
		actual = facts.Path
	case MatchHeader:
		actual = facts.Headers[r.HeaderName]
	case MatchStatusCode:
		actual = strconv.Itoa(facts.StatusCode)
	}

	condition := r.Condition
	if r.MatchType == MatchMethod {
		condition = strings.ToUpper(condition)
	}

	matched := matchString(actual, condition)
	if r.Relationship == RelNotMatches {
		return !matched
	}
	return matched
}

// matchString implements the spec's string-match fallback chain: try
// the condition as a full regex; if it fails to compile, fall back to
// a literal-with-leading-asterisk glob (*.foo.com); otherwise exact
// equality.
func matchString(actual, condition string) bool {
	if re, err := regexp.Compile(condition); err == nil {
		return re.MatchString(actual)
	}
	if strings.HasPrefix(condition, "*") {
		ok, err := path.Match(condition, actual)
		if err == nil {
			return ok
		}
	}
	return actual == condition
}
