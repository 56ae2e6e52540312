package bruteforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/jlaffaye/ftp"

	"github.com/rshield/rshield/internal/model"
)

// FTPAdapter connects then issues LOGIN, per spec §4.7.
type FTPAdapter struct{}

// Attempt implements ProtocolAdapter.
func (FTPAdapter) Attempt(ctx context.Context, task model.BruteForceTask, username, password string) (Outcome, error) {
	port := task.Port
	if port <= 0 {
		port = 21
	}
	addr := fmt.Sprintf("%s:%d", task.Target, port)

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(attemptTimeout(ctx)))
	if err != nil {
		return OutcomeTransportError, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Quit()

	if err := conn.Login(username, password); err != nil {
		if isFTPAuthError(err) {
			return OutcomeAuthFailed, err
		}
		return OutcomeTransportError, err
	}
	return OutcomeSuccess, nil
}

func isFTPAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "530") || strings.Contains(msg, "login") || strings.Contains(msg, "incorrect")
}
