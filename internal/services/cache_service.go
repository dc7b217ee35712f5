package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService fronts hot catalog reads with Redis. The database stays the
// source of truth; cache failures are logged and treated as misses so a
// Redis outage never blocks ordering.
type CacheService struct {
	Redis           *redis.Client
	AvailabilityTTL time.Duration
	DashboardTTL    time.Duration
}

func NewCacheService(redisClient *redis.Client, availabilityTTL, dashboardTTL time.Duration) *CacheService {
	return &CacheService{
		Redis:           redisClient,
		AvailabilityTTL: availabilityTTL,
		DashboardTTL:    dashboardTTL,
	}
}

func availabilityKey(ticketTypeID string) string {
	return fmt.Sprintf("availability:%s", ticketTypeID)
}

// GetAvailability returns the cached availability for a ticket type. The
// second result reports whether the value was present.
func (s *CacheService) GetAvailability(ctx context.Context, ticketTypeID string) (int, bool) {
	if s == nil || s.Redis == nil {
		return 0, false
	}

	val, err := s.Redis.Get(ctx, availabilityKey(ticketTypeID)).Result()
	if err == redis.Nil {
		return 0, false
	}
	if err != nil {
		slog.Error("availability cache read failed", "ticketTypeId", ticketTypeID, "error", err)
		return 0, false
	}

	available, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return available, true
}

func (s *CacheService) SetAvailability(ctx context.Context, ticketTypeID string, available int) {
	if s == nil || s.Redis == nil {
		return
	}

	if err := s.Redis.Set(ctx, availabilityKey(ticketTypeID), available, s.AvailabilityTTL).Err(); err != nil {
		slog.Error("availability cache write failed", "ticketTypeId", ticketTypeID, "error", err)
	}
}

// InvalidateAvailability drops the cached count after any reserve, release
// or resize commits.
func (s *CacheService) InvalidateAvailability(ctx context.Context, ticketTypeID string) {
	if s == nil || s.Redis == nil {
		return
	}

	if err := s.Redis.Del(ctx, availabilityKey(ticketTypeID)).Err(); err != nil {
		slog.Error("availability cache invalidation failed", "ticketTypeId", ticketTypeID, "error", err)
	}
}

// GetDashboard returns the cached admin dashboard JSON payload.
func (s *CacheService) GetDashboard(ctx context.Context) (string, bool) {
	if s == nil || s.Redis == nil {
		return "", false
	}

	val, err := s.Redis.Get(ctx, "admin:dashboard").Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		slog.Error("dashboard cache read failed", "error", err)
		return "", false
	}
	return val, true
}

func (s *CacheService) SetDashboard(ctx context.Context, payload string) {
	if s == nil || s.Redis == nil {
		return
	}

	if err := s.Redis.Set(ctx, "admin:dashboard", payload, s.DashboardTTL).Err(); err != nil {
		slog.Error("dashboard cache write failed", "error", err)
	}
}

// InvalidateDashboard drops the dashboard payload after any order mutation.
func (s *CacheService) InvalidateDashboard(ctx context.Context) {
	if s == nil || s.Redis == nil {
		return
	}

	if err := s.Redis.Del(ctx, "admin:dashboard").Err(); err != nil {
		slog.Error("dashboard cache invalidation failed", "error", err)
	}
}
