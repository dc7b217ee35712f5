package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsFirstRequest(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db)

	mock.ExpectIncr("ratelimit:orders:u1").SetVal(1)
	mock.ExpectExpire("ratelimit:orders:u1", time.Minute).SetVal(true)

	allowed := limiter.Allow(context.Background(), "orders:u1", 5, time.Minute)
	assert.True(t, allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db)

	mock.ExpectIncr("ratelimit:orders:u1").SetVal(5)

	allowed := limiter.Allow(context.Background(), "orders:u1", 5, time.Minute)
	assert.True(t, allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db)

	mock.ExpectIncr("ratelimit:orders:u1").SetVal(6)

	allowed := limiter.Allow(context.Background(), "orders:u1", 5, time.Minute)
	assert.False(t, allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiterFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db)

	mock.ExpectIncr("ratelimit:orders:u1").SetErr(errors.New("connection refused"))

	allowed := limiter.Allow(context.Background(), "orders:u1", 5, time.Minute)
	assert.True(t, allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
