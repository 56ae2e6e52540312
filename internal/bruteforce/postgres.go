package bruteforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/rshield/rshield/internal/model"
)

// PostgreSQLAdapter attempts a pgx connection, classifying
// PostgreSQL's "28P01"/"password authentication failed" response as an
// auth failure and anything else as a transport error.
type PostgreSQLAdapter struct{}

// Attempt implements ProtocolAdapter.
func (PostgreSQLAdapter) Attempt(ctx context.Context, task model.BruteForceTask, username, password string) (Outcome, error) {
	port := task.Port
	if port <= 0 {
		port = 5432
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/postgres?sslmode=prefer", username, password, task.Target, port)

	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		if isPostgresAuthError(err) {
			return OutcomeAuthFailed, err
		}
		return OutcomeTransportError, err
	}
	defer conn.Close(ctx)
	return OutcomeSuccess, nil
}

func isPostgresAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password authentication failed") ||
		strings.Contains(msg, "28p01") ||
		strings.Contains(msg, "authentication failed")
}
