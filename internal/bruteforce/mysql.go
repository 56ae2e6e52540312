package bruteforce

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/rshield/rshield/internal/model"
)

// MySQLAdapter attempts a connection + ping, classifying the MySQL
// driver's access-denied error code (1045) as an auth failure and
// anything else (refused connection, timeout) as a transport error.
type MySQLAdapter struct{}

// Attempt implements ProtocolAdapter.
func (MySQLAdapter) Attempt(ctx context.Context, task model.BruteForceTask, username, password string) (Outcome, error) {
	port := task.Port
	if port <= 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/?timeout=%s", username, password, task.Target, port, attemptTimeout(ctx))

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return OutcomeTransportError, err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		if isMySQLAuthError(err) {
			return OutcomeAuthFailed, err
		}
		return OutcomeTransportError, err
	}
	return OutcomeSuccess, nil
}

func isMySQLAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "access denied") || strings.Contains(msg, "1045")
}
