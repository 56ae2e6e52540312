package bruteforce

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/rshield/rshield/internal/model"
)

// SSHAdapter attempts a password-auth SSH handshake per spec §4.7:
// per-attempt connect timeout, transport errors retried up to
// maxTransportRetries times with exponential backoff + jitter, auth
// failures never retried. Host key verification is intentionally
// skipped — unlike internal/sshexec's TOFU cache for a trusted fleet
// of managed agents, a brute-force target is untrusted by definition
// and has no prior trust relationship to pin against.
type SSHAdapter struct{}

const (
	maxTransportRetries = 2
	sshBaseBackoff      = 200 * time.Millisecond
)

// Attempt implements ProtocolAdapter.
func (SSHAdapter) Attempt(ctx context.Context, task model.BruteForceTask, username, password string) (Outcome, error) {
	var lastErr error
	for attempt := 0; attempt <= maxTransportRetries; attempt++ {
		if attempt > 0 {
			backoff := sshBaseBackoff * time.Duration(1<<uint(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(sshBaseBackoff)))
			select {
			case <-ctx.Done():
				return OutcomeTransportError, ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		outcome, err := sshAttemptOnce(ctx, task, username, password)
		if outcome != OutcomeTransportError {
			return outcome, err
		}
		lastErr = err
	}
	return OutcomeTransportError, lastErr
}

func sshAttemptOnce(ctx context.Context, task model.BruteForceTask, username, password string) (Outcome, error) {
	addr := net.JoinHostPort(task.Target, portOrDefault(task.Port, 22))

	config := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         attemptTimeout(ctx),
	}

	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return OutcomeTransportError, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		if isSSHAuthError(err) {
			return OutcomeAuthFailed, err
		}
		conn.Close()
		return OutcomeTransportError, fmt.Errorf("handshake %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	client.Close()
	return OutcomeSuccess, nil
}

func isSSHAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "no supported methods remain")
}

func attemptTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
	}
	return 10 * time.Second
}

func portOrDefault(port, def int) string {
	if port <= 0 {
		port = def
	}
	return fmt.Sprintf("%d", port)
}
