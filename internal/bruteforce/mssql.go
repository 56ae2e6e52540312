package bruteforce

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/rshield/rshield/internal/model"
)

// MSSQLAdapter attempts a connection + ping, classifying SQL Server's
// "login failed" response (error 18456) as an auth failure.
type MSSQLAdapter struct{}

// Attempt implements ProtocolAdapter.
func (MSSQLAdapter) Attempt(ctx context.Context, task model.BruteForceTask, username, password string) (Outcome, error) {
	port := task.Port
	if port <= 0 {
		port = 1433
	}
	dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%d?connection+timeout=%d", username, password, task.Target, port, int(attemptTimeout(ctx).Seconds()))

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return OutcomeTransportError, err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		if isMSSQLAuthError(err) {
			return OutcomeAuthFailed, err
		}
		return OutcomeTransportError, err
	}
	return OutcomeSuccess, nil
}

func isMSSQLAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "login failed") || strings.Contains(msg, "18456")
}
