package bruteforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rshield/rshield/internal/model"
)

// RedisAdapter connects with an embedded password and validates via
// PING, per spec §4.7.
type RedisAdapter struct{}

// Attempt implements ProtocolAdapter.
func (RedisAdapter) Attempt(ctx context.Context, task model.BruteForceTask, username, password string) (Outcome, error) {
	port := task.Port
	if port <= 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", task.Target, port),
		Username:    username,
		Password:    password,
		DialTimeout: attemptTimeout(ctx),
	})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		if isRedisAuthError(err) {
			return OutcomeAuthFailed, err
		}
		return OutcomeTransportError, err
	}
	return OutcomeSuccess, nil
}

func isRedisAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "noauth") || strings.Contains(msg, "wrongpass") || strings.Contains(msg, "invalid password")
}
