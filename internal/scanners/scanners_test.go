package scanners

import (
	"strings"
	"testing"

	"github.com/rshield/rshield/internal/model"
)

func TestXSSScannerFlagsScriptTagReflection(t *testing.T) {
	req := model.InterceptedRequest{
		Method: "GET",
		URL:    "http://victim.test/search?q=%3Cscript%3Ealert(1)%3C%2Fscript%3E",
	}
	resp := model.InterceptedResponse{
		Status: 200,
		Body:   `<html><body><script>alert(1)</script></body></html>`,
	}

	results := XSSScanner{}.Scan(req, resp)
	if len(results) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(results))
	}
	if results[0].RiskName != "Reflected Cross-Site Scripting" {
		t.Errorf("unexpected risk name: %s", results[0].RiskName)
	}
	if results[0].Level != model.RiskHigh {
		t.Errorf("expected RiskHigh, got %s", results[0].Level)
	}
}

func TestXSSScannerIgnoresInertReflection(t *testing.T) {
	req := model.InterceptedRequest{
		Method: "GET",
		URL:    "http://victim.test/search?q=hello",
	}
	resp := model.InterceptedResponse{
		Status: 200,
		Body:   `<html><body><p>results for hello</p></body></html>`,
	}

	results := XSSScanner{}.Scan(req, resp)
	if len(results) != 0 {
		t.Fatalf("expected no findings, got %d", len(results))
	}
}

func TestXSSScannerFlagsEventHandlerReflection(t *testing.T) {
	req := model.InterceptedRequest{
		Method: "GET",
		URL:    "http://victim.test/p?name=x%22 onmouseover=%22alert(1)",
	}
	resp := model.InterceptedResponse{
		Status: 200,
		Body:   `<html><body><div data-x="x" onmouseover="alert(1)">hi</div></body></html>`,
	}

	results := XSSScanner{}.Scan(req, resp)
	if len(results) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(results))
	}
	if !strings.Contains(results[0].Description, "event handler") {
		t.Errorf("expected event handler description, got %q", results[0].Description)
	}
}

func TestXSSScannerFlagsStructuralChangeWithoutDangerousTag(t *testing.T) {
	req := model.InterceptedRequest{
		Method: "GET",
		URL:    "http://victim.test/note?msg=%3Cb%3Einjected%3C%2Fb%3E",
	}
	resp := model.InterceptedResponse{
		Status: 200,
		Body:   `<html><body><p>note: <b>injected</b></p></body></html>`,
	}

	results := XSSScanner{}.Scan(req, resp)
	if len(results) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(results))
	}
	if results[0].Level != model.RiskMedium {
		t.Errorf("expected RiskMedium, got %s", results[0].Level)
	}
	if !strings.Contains(results[0].Description, "DOM structure") {
		t.Errorf("expected DOM structure description, got %q", results[0].Description)
	}
}

func TestSQLiScannerRequiresBothErrorAndMetaCharacters(t *testing.T) {
	req := model.InterceptedRequest{
		Method: "GET",
		URL:    "http://victim.test/item?id=1' OR '1'='1",
	}
	resp := model.InterceptedResponse{
		Status: 500,
		Body:   `You have an error in your SQL syntax; check the manual`,
	}

	results := SQLiScanner{}.Scan(req, resp)
	if len(results) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(results))
	}
	if results[0].Level != model.RiskCritical {
		t.Errorf("expected RiskCritical, got %s", results[0].Level)
	}
	if !strings.Contains(results[0].Description, "mysql") {
		t.Errorf("expected mysql engine in description, got %q", results[0].Description)
	}
}

func TestSQLiScannerIgnoresErrorWithoutSuspiciousParam(t *testing.T) {
	req := model.InterceptedRequest{
		Method: "GET",
		URL:    "http://victim.test/item?id=1",
	}
	resp := model.InterceptedResponse{
		Status: 500,
		Body:   `You have an error in your SQL syntax`,
	}

	results := SQLiScanner{}.Scan(req, resp)
	if len(results) != 0 {
		t.Fatalf("expected no findings, got %d", len(results))
	}
}

func TestSQLiScannerIgnoresSuspiciousParamWithoutError(t *testing.T) {
	req := model.InterceptedRequest{
		Method: "GET",
		URL:    "http://victim.test/item?id=1' OR '1'='1",
	}
	resp := model.InterceptedResponse{
		Status: 200,
		Body:   `<html>no rows</html>`,
	}

	results := SQLiScanner{}.Scan(req, resp)
	if len(results) != 0 {
		t.Fatalf("expected no findings, got %d", len(results))
	}
}

func TestRCEScannerLevel1DetectsCommandMarker(t *testing.T) {
	req := model.InterceptedRequest{
		Method: "GET",
		URL:    "http://victim.test/ping?host=127.0.0.1%3B%20whoami",
	}
	resp := model.InterceptedResponse{
		Status: 500,
		Body:   `sh: 1: whoami: not found`,
	}

	results := RCEScanner{Level: 1}.Scan(req, resp)
	if len(results) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(results))
	}
	if results[0].Level != model.RiskCritical {
		t.Errorf("expected RiskCritical, got %s", results[0].Level)
	}
}

func TestRCEScannerLevel1IgnoresCodeExecutionMarker(t *testing.T) {
	req := model.InterceptedRequest{
		Method: "GET",
		URL:    "http://victim.test/calc?expr=eval(1%2B1)",
	}
	resp := model.InterceptedResponse{
		Status: 500,
		Body:   `Traceback (most recent call last): foo`,
	}

	results := RCEScanner{Level: 1}.Scan(req, resp)
	if len(results) != 0 {
		t.Fatalf("expected no findings at level 1, got %d", len(results))
	}
}

func TestRCEScannerLevel3DetectsCodeExecutionMarker(t *testing.T) {
	req := model.InterceptedRequest{
		Method: "GET",
		URL:    "http://victim.test/calc?expr=eval(1%2B1)",
	}
	resp := model.InterceptedResponse{
		Status: 500,
		Body:   `Traceback (most recent call last): foo`,
	}

	results := RCEScanner{Level: 3}.Scan(req, resp)
	if len(results) != 1 {
		t.Fatalf("expected 1 finding at level 3, got %d", len(results))
	}
}

func TestBuiltinsReturnsThreeScannersInOrder(t *testing.T) {
	scanners := Builtins(2)
	if len(scanners) != 3 {
		t.Fatalf("expected 3 builtin scanners, got %d", len(scanners))
	}
	names := []string{scanners[0].Name(), scanners[1].Name(), scanners[2].Name()}
	want := []string{"xss", "sqli", "rce"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("scanner[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}
