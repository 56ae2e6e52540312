package bruteforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rshield/rshield/internal/cmdrunner"
	"github.com/rshield/rshield/internal/model"
)

// ShellOutAdapter drives SMB/RDP/Oracle/Telnet brute-force attempts
// through external platform tools (smbclient/xfreerdp/sqlplus/telnet)
// per spec §4.7 and §9's "abstract shell-outs behind a command runner"
// note, going through the same internal/cmdrunner abstraction the
// Active Scanner Engine uses for its port scanner and nuclei.
type ShellOutAdapter struct {
	Allowlist cmdrunner.Allowlist
	Protocol  model.BruteForceProtocol
}

// Attempt implements ProtocolAdapter.
func (a ShellOutAdapter) Attempt(ctx context.Context, task model.BruteForceTask, username, password string) (Outcome, error) {
	var key string
	var args []string

	switch a.Protocol {
	case model.ProtoSMB:
		key = "smbclient"
		args = []string{"-U", fmt.Sprintf("%s%%%s", username, password), "-L", task.Target, "-m", "SMB3"}
	case model.ProtoRDP:
		key = "xfreerdp"
		args = []string{fmt.Sprintf("/v:%s:%d", task.Target, portOrDefaultInt(task.Port, 3389)), fmt.Sprintf("/u:%s", username), fmt.Sprintf("/p:%s", password), "/cert:ignore", "+auth-only"}
	case model.ProtoOracle:
		key = "sqlplus"
		args = []string{"-L", fmt.Sprintf("%s/%s@%s:%d", username, password, task.Target, portOrDefaultInt(task.Port, 1521)), "/nolog"}
	case model.ProtoTelnet:
		key = "telnet"
		args = []string{task.Target, fmt.Sprintf("%d", portOrDefaultInt(task.Port, 23))}
	default:
		return OutcomeTransportError, fmt.Errorf("shellout adapter: unsupported protocol %s", a.Protocol)
	}

	result, err := a.Allowlist.Run(ctx, key, args...)
	if err != nil {
		if isShellAuthError(result) {
			return OutcomeAuthFailed, err
		}
		return OutcomeTransportError, err
	}
	if isShellAuthFailureInOutput(result.Stdout + result.Stderr) {
		return OutcomeAuthFailed, nil
	}
	return OutcomeSuccess, nil
}

func isShellAuthError(result cmdrunner.Result) bool {
	return isShellAuthFailureInOutput(result.Stdout + result.Stderr)
}

func isShellAuthFailureInOutput(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "logon failure") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "authentication failure") ||
		strings.Contains(lower, "invalid username or password") ||
		strings.Contains(lower, "ora-01017") ||
		strings.Contains(lower, "login incorrect")
}

func portOrDefaultInt(port, def int) int {
	if port <= 0 {
		return def
	}
	return port
}
