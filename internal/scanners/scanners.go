// Package scanners implements the Passive Scanner Engine's three
// built-in vulnerability scanners (spec §4.6): XSS, SQLi, and RCE.
// Each takes one (request, response) observation and returns zero or
// more findings; internal/passivescan runs them over every pair
// flowing through the proxy's traffic channel.
package scanners

import "github.com/rshield/rshield/internal/model"

// Result is one scanner's finding against a single traffic pair.
type Result struct {
	Matched     bool
	RiskName    string
	RiskType    string
	Level       model.RiskLevel
	Description string
	Evidence    string
}

// Scanner analyzes one intercepted request/response pair.
type Scanner interface {
	Name() string
	Scan(req model.InterceptedRequest, resp model.InterceptedResponse) []Result
}

// Builtins returns the three mandatory built-in scanners in the order
// spec §4.6 lists them.
func Builtins(level int) []Scanner {
	return []Scanner{
		XSSScanner{},
		SQLiScanner{},
		RCEScanner{Level: level},
	}
}
