package bruteforce

import (
	"time"

	"github.com/rshield/rshield/internal/cmdrunner"
	"github.com/rshield/rshield/internal/model"
)

// DefaultShellOutCommands is the allowlist base-args table for the
// shell-out protocols, grounded on processor.go's allowedDiagnostics
// shape: one fixed binary+base-args entry per logical key, nothing
// else ever executes.
var DefaultShellOutCommands = map[string][]string{
	"smbclient": {"smbclient"},
	"xfreerdp":  {"xfreerdp"},
	"sqlplus":   {"timeout", "10", "sqlplus"},
	"telnet":    {"timeout", "10", "telnet"},
}

// BuiltinAdapters wires every protocol in model.BruteForceProtocol to
// its concrete adapter, with SMB/RDP/Oracle/Telnet sharing one
// cmdrunner.Allowlist+ExecRunner.
func BuiltinAdapters(runner cmdrunner.Runner) map[model.BruteForceProtocol]ProtocolAdapter {
	if runner == nil {
		runner = cmdrunner.ExecRunner{Timeout: 15 * time.Second}
	}
	allowlist := cmdrunner.Allowlist{Runner: runner, Commands: DefaultShellOutCommands}

	return map[model.BruteForceProtocol]ProtocolAdapter{
		model.ProtoSSH:        SSHAdapter{},
		model.ProtoMySQL:      MySQLAdapter{},
		model.ProtoPostgreSQL: PostgreSQLAdapter{},
		model.ProtoMSSQL:      MSSQLAdapter{},
		model.ProtoRedis:      RedisAdapter{},
		model.ProtoFTP:        FTPAdapter{},
		model.ProtoSMB:        ShellOutAdapter{Allowlist: allowlist, Protocol: model.ProtoSMB},
		model.ProtoRDP:        ShellOutAdapter{Allowlist: allowlist, Protocol: model.ProtoRDP},
		model.ProtoOracle:     ShellOutAdapter{Allowlist: allowlist, Protocol: model.ProtoOracle},
		model.ProtoTelnet:     ShellOutAdapter{Allowlist: allowlist, Protocol: model.ProtoTelnet},
	}
}
