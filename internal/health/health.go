package health

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Status struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Healthy reports whether every check passed.
func (s *Status) Healthy() bool {
	return s.Status == StatusOK
}

// Checker pings storage and, when configured, the report cache.
type Checker struct {
	db      *sqlx.DB
	redis   *redis.Client
	timeout time.Duration
}

// NewChecker accepts a nil redis client when caching is disabled.
func NewChecker(db *sqlx.DB, redis *redis.Client, timeout time.Duration) *Checker {
	return &Checker{
		db:      db,
		redis:   redis,
		timeout: timeout,
	}
}

// Ready checks database and redis connectivity.
func (c *Checker) Ready(ctx context.Context) *Status {
	status := &Status{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	dbCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.db.PingContext(dbCtx); err != nil {
		status.Status = StatusError
		status.Checks["database"] = "failed: " + err.Error()
	} else {
		status.Checks["database"] = StatusOK
	}

	if c.redis == nil {
		status.Checks["redis"] = "disabled"
		return status
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, c.timeout)
	defer redisCancel()

	if err := c.redis.Ping(redisCtx).Err(); err != nil {
		status.Status = StatusError
		status.Checks["redis"] = "failed: " + err.Error()
	} else {
		status.Checks["redis"] = StatusOK
	}

	return status
}
