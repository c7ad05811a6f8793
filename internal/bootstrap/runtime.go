// Package bootstrap connects the external dependencies a strayland process needs.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"strayland/internal/cache"
	"strayland/internal/config"
	"strayland/internal/database"
	"strayland/internal/llm"
	"strayland/internal/middleware"
	"strayland/internal/service"
	"strayland/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime bundles the connected dependencies.
type Runtime struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Objects   storage.ObjectStore
	LLM       *llm.Client
	Assistant service.AssistantProfile
}

// InitRuntime connects to the DB, Redis and the object store and loads the
// assistant profile. Redis is optional and may be nil on return.
func InitRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rt := &Runtime{DB: db}
	rt.Redis = cache.Connect(ctx, cfg.RedisURL)

	objects, err := storage.New(cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("object store: %w", err)
	}
	if s3Store, ok := objects.(*storage.S3Store); ok {
		if err := s3Store.EnsureBucket(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("ensure bucket %q: %w", cfg.S3Bucket, err)
		}
	}
	rt.Objects = objects

	profile, err := service.LoadAssistantProfile(cfg.AssistantProfilePath)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Assistant = profile

	rt.LLM = llm.NewClient(llm.Options{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
	})
	if !rt.LLM.Configured() {
		middleware.Logger.Warn("LLM_API_KEY is empty, chat assistant disabled")
	}

	middleware.Logger.Info("runtime initialized",
		slog.String("storage", cfg.StorageDriver),
		slog.Bool("redis", rt.Redis != nil),
		slog.String("auth_mode", cfg.AuthMode),
	)
	return rt, nil
}

// Close releases the DB pool and the Redis client.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
			}
		}
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}
}
