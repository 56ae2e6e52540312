package proxy

import "testing"

func TestEvaluateEmptyRuleListMatchesAll(t *testing.T) {
	if !Evaluate(nil, RequestFacts{Domain: "example.com"}) {
		t.Fatal("empty rule list should intercept everything")
	}
}

func TestEvaluateSingleRule(t *testing.T) {
	rules := []Rule{
		{Enabled: true, MatchType: MatchDomain, Relationship: RelMatches, Condition: "*.example.com"},
	}
	if !Evaluate(rules, RequestFacts{Domain: "api.example.com"}) {
		t.Fatal("expected domain glob to match")
	}
	if Evaluate(rules, RequestFacts{Domain: "api.other.com"}) {
		t.Fatal("expected domain glob not to match")
	}
}

func TestEvaluateDisabledRulesAreIgnored(t *testing.T) {
	rules := []Rule{
		{Enabled: false, MatchType: MatchDomain, Relationship: RelMatches, Condition: "nope.com"},
	}
	if !Evaluate(rules, RequestFacts{Domain: "anything.com"}) {
		t.Fatal("all-disabled rule list should intercept everything, same as empty")
	}
}

func TestEvaluateAndCombination(t *testing.T) {
	rules := []Rule{
		{Enabled: true, MatchType: MatchMethod, Relationship: RelMatches, Condition: "POST"},
		{Enabled: true, Operator: OpAnd, MatchType: MatchPath, Relationship: RelMatches, Condition: "/api/.*"},
	}
	if !Evaluate(rules, RequestFacts{Method: "POST", Path: "/api/login"}) {
		t.Fatal("expected AND combination to match")
	}
	if Evaluate(rules, RequestFacts{Method: "GET", Path: "/api/login"}) {
		t.Fatal("expected AND combination to fail when method differs")
	}
}

func TestEvaluateOrCombination(t *testing.T) {
	rules := []Rule{
		{Enabled: true, MatchType: MatchExtension, Relationship: RelMatches, Condition: ".php"},
		{Enabled: true, Operator: OpOr, MatchType: MatchExtension, Relationship: RelMatches, Condition: ".asp"},
	}
	if !Evaluate(rules, RequestFacts{Extension: ".asp"}) {
		t.Fatal("expected OR combination to match second alternative")
	}
	if Evaluate(rules, RequestFacts{Extension: ".html"}) {
		t.Fatal("expected OR combination to reject unrelated extension")
	}
}

func TestEvaluateNotMatches(t *testing.T) {
	rules := []Rule{
		{Enabled: true, MatchType: MatchMethod, Relationship: RelNotMatches, Condition: "GET"},
	}
	if Evaluate(rules, RequestFacts{Method: "GET"}) {
		t.Fatal("not_matches GET should reject GET requests")
	}
	if !Evaluate(rules, RequestFacts{Method: "POST"}) {
		t.Fatal("not_matches GET should accept POST requests")
	}
}

func TestEvaluateHeaderMatch(t *testing.T) {
	rules := []Rule{
		{Enabled: true, MatchType: MatchHeader, HeaderName: "X-Api-Key", Relationship: RelMatches, Condition: "secret"},
	}
	if !Evaluate(rules, RequestFacts{Headers: map[string]string{"X-Api-Key": "secret"}}) {
		t.Fatal("expected header exact match")
	}
}

func TestEvaluateStatusCodeMatch(t *testing.T) {
	rules := []Rule{
		{Enabled: true, MatchType: MatchStatusCode, Relationship: RelMatches, Condition: "500"},
	}
	if !Evaluate(rules, RequestFacts{StatusCode: 500}) {
		t.Fatal("expected status code exact match")
	}
	if Evaluate(rules, RequestFacts{StatusCode: 200}) {
		t.Fatal("status code 200 should not match condition 500")
	}
}

func TestMatchStringFallbackChain(t *testing.T) {
	if !matchString("api.example.com", "^api\\.") {
		t.Fatal("valid regex should be used as regex")
	}
	if !matchString("api.example.com", "*.example.com") {
		t.Fatal("leading-asterisk condition should fall back to glob")
	}
	if !matchString("exact", "exact") {
		t.Fatal("plain string should match itself")
	}
	if matchString("exact", "other") {
		t.Fatal("mismatched exact string should not match")
	}
}
