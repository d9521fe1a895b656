package service

import (
	"context"
	"runtime"
	"time"

	"github.com/geocoder89/identityhub/internal/apperr"
	"github.com/geocoder89/identityhub/internal/cache"
	"github.com/geocoder89/identityhub/internal/domain/user"
)

type RoleCounter interface {
	CountByRole(ctx context.Context) (map[user.Role]int, error)
}

type SystemInfo struct {
	GoVersion     string  `json:"goVersion"`
	Platform      string  `json:"platform"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Goroutines    int     `json:"goroutines"`
}

type Stats struct {
	TotalUsers   int        `json:"totalUsers"`
	AdminUsers   int        `json:"adminUsers"`
	RegularUsers int        `json:"regularUsers"`
	SystemInfo   SystemInfo `json:"systemInfo"`
	Timestamp    time.Time  `json:"timestamp"`
}

const statsCacheKey = "stats"

// StatsService builds the operational snapshot served behind the gate.
type StatsService struct {
	users   RoleCounter
	cache   *cache.Cache[Stats]
	started time.Time
	now     func() time.Time
}

func NewStatsService(users RoleCounter, ttl time.Duration) *StatsService {
	return &StatsService{
		users:   users,
		cache:   cache.New[Stats](ttl),
		started: time.Now(),
		now:     time.Now,
	}
}

func (s *StatsService) Snapshot(ctx context.Context) (Stats, error) {
	stats, err := s.cache.GetOrLoad(statsCacheKey, func() (Stats, error) {
		counts, err := s.users.CountByRole(ctx)
		if err != nil {
			return Stats{}, err
		}

		now := s.now().UTC()
		return Stats{
			TotalUsers:   counts[user.RoleAdmin] + counts[user.RoleUser],
			AdminUsers:   counts[user.RoleAdmin],
			RegularUsers: counts[user.RoleUser],
			SystemInfo: SystemInfo{
				GoVersion:     runtime.Version(),
				Platform:      runtime.GOOS + "/" + runtime.GOARCH,
				UptimeSeconds: now.Sub(s.started).Seconds(),
				Goroutines:    runtime.NumGoroutine(),
			},
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return Stats{}, apperr.Internal("Could not load stats", err)
	}
	return stats, nil
}
