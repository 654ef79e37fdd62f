// Package history keeps recent scan cycles and generated threat reports in
// Redis.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/exposure-scanner/autoscan/internal/config"
	"github.com/exposure-scanner/autoscan/internal/threats"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	cyclesKey    = "exposure:cycles"
	reportPrefix = "exposure:report:"
)

// ErrNotFound is returned when a report does not exist or has expired.
var ErrNotFound = errors.New("not found")

// CycleRecord is the persisted summary of one completed scan cycle.
type CycleRecord struct {
	CycleID      int64      `json:"cycleId"`
	DurationMS   int64      `json:"duration"`
	SuccessCount int        `json:"successCount"`
	ErrorCount   int        `json:"errorCount"`
	TotalSites   int        `json:"totalSites"`
	Cancelled    bool       `json:"cancelled,omitempty"`
	CompletedAt  time.Time  `json:"completedAt"`
	NextScan     *time.Time `json:"nextScan,omitempty"`
}

// Report is a stored threat scan result.
type Report struct {
	ID        string            `json:"id"`
	User      threats.UserData  `json:"user"`
	Threats   []threats.Threat  `json:"threats"`
	Stats     threats.ScanStats `json:"stats"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store is a Redis-backed history.
type Store struct {
	rdb        *redis.Client
	maxEntries int64
	ttl        time.Duration
	logger     *zap.SugaredLogger
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, cfg config.HistoryConfig, logger *zap.SugaredLogger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Infow("Connected to Redis", "addr", cfg.Addr, "db", cfg.DB)

	return &Store{
		rdb:        rdb,
		maxEntries: int64(max(cfg.MaxEntries, 1)),
		ttl:        time.Duration(cfg.TTLHours) * time.Hour,
		logger:     logger,
	}, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping checks that Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// SaveCycle prepends rec to the cycle list and trims it to the configured size.
func (s *Store) SaveCycle(ctx context.Context, rec CycleRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, cyclesKey, data)
	pipe.LTrim(ctx, cyclesKey, 0, s.maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save cycle %d: %w", rec.CycleID, err)
	}
	return nil
}

// RecentCycles returns up to n cycles, newest first.
func (s *Store) RecentCycles(ctx context.Context, n int) ([]CycleRecord, error) {
	if n <= 0 {
		return []CycleRecord{}, nil
	}

	raw, err := s.rdb.LRange(ctx, cyclesKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}

	records := make([]CycleRecord, 0, len(raw))
	for _, item := range raw {
		var rec CycleRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			s.logger.Warnw("Skipping unreadable cycle record", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// SaveReport stores a report under its ID. Reports expire after the
// configured TTL; a zero TTL keeps them indefinitely.
func (s *Store) SaveReport(ctx context.Context, report Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := s.rdb.Set(ctx, reportPrefix+report.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.ID, err)
	}
	return nil
}

// Report loads a stored report.
func (s *Store) Report(ctx context.Context, id string) (Report, error) {
	data, err := s.rdb.Get(ctx, reportPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Report{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Report{}, fmt.Errorf("failed to load report %s: %w", id, err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return report, nil
}
