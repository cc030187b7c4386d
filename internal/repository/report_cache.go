package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

const LatestReportCacheKey = "integrity:report:latest"

// ReportCache holds a copy of the latest report in Redis. Get returns nil, nil
// on a miss.
type ReportCache interface {
	Get(ctx context.Context) (*models.AnalysisReport, error)
	Set(ctx context.Context, report *models.AnalysisReport) error
	Invalidate(ctx context.Context) error
}

type redisReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewRedisReportCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) ReportCache {
	return &redisReportCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// ConnectRedis builds a client and checks that the server answers.
func ConnectRedis(ctx context.Context, address, password string, db int) (*redis.Client, error) {
	if address == "" {
		return nil, fmt.Errorf("redis address must not be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return client, nil
}

func (c *redisReportCache) Get(ctx context.Context) (*models.AnalysisReport, error) {
	cached, err := c.client.Get(ctx, LatestReportCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read report cache: %w", err)
	}

	var report models.AnalysisReport
	if err := json.Unmarshal(cached, &report); err != nil {
		return nil, fmt.Errorf("failed to decode cached report: %w", err)
	}

	return &report, nil
}

func (c *redisReportCache) Set(ctx context.Context, report *models.AnalysisReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report for cache: %w", err)
	}

	if err := c.client.Set(ctx, LatestReportCacheKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store report cache: %w", err)
	}

	c.logger.Debug().Str("run_id", report.ID).Dur("ttl", c.ttl).Msg("Report cached")
	return nil
}

func (c *redisReportCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, LatestReportCacheKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate report cache: %w", err)
	}
	return nil
}
