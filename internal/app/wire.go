package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0xcro3dile/policyqa-go/internal/adapters/assets"
	"github.com/0xcro3dile/policyqa-go/internal/adapters/llm"
	"github.com/0xcro3dile/policyqa-go/internal/adapters/usage"
	"github.com/0xcro3dile/policyqa-go/internal/config"
	"github.com/0xcro3dile/policyqa-go/internal/domain/ports"
	"github.com/0xcro3dile/policyqa-go/internal/domain/usecases"
)

// components is the wired object graph shared by the commands.
type components struct {
	logger    *zap.Logger
	files     *assets.FileStore // nil when assets are remote
	chunks    ports.ChunkSource
	docs      ports.DocumentSource
	counter   ports.UsageCounter
	generator ports.Generator
	site      *usecases.SiteAccess
	ask       *usecases.AskUseCase

	closers []func() error
}

func build(cfg *config.Config, version string, logger *zap.Logger) (*components, error) {
	c := &components{logger: logger}

	c.chunks, c.docs, c.files = buildAssets(cfg.Assets, logger)

	counter, closer, err := buildCounter(cfg.Limits)
	if err != nil {
		return nil, err
	}
	c.counter = counter
	if closer != nil {
		c.closers = append(c.closers, closer)
	}

	generator, err := llm.New(llm.Options{
		Provider:  cfg.LLM.Provider,
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   cfg.LLM.Timeout,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating generator: %w", err)
	}
	c.generator = generator

	loc, err := cfg.Location()
	if err != nil {
		c.Close()
		return nil, err
	}

	c.site = usecases.NewSiteAccess(cfg.Access.SiteKey)
	c.ask = usecases.NewAskUseCase(c.chunks, c.generator, c.counter, usecases.AskConfig{
		BotKey:          cfg.Access.BotKey,
		DailyLimit:      cfg.Limits.Daily,
		Location:        loc,
		UsageTTL:        cfg.Limits.TTL,
		SiteKeyRequired: c.site.Enabled(),
		Version:         version,
	}, logger)

	fields := []zap.Field{
		zap.String("usage_backend", cfg.Limits.Backend),
		zap.Bool("site_locked", c.site.Enabled()),
		zap.Bool("bot_key", cfg.Access.BotKey != ""),
	}
	if c.generator != nil {
		fields = append(fields, zap.String("generator", c.generator.Name()))
	}
	logger.Info("components ready", fields...)

	return c, nil
}

// buildAssets prefers a remote base URL over the local directory.
func buildAssets(opts config.AssetOptions, logger *zap.Logger) (ports.ChunkSource, ports.DocumentSource, *assets.FileStore) {
	if opts.BaseURL != "" {
		store := assets.NewHTTPStore(opts.BaseURL, opts.ChunksFile, opts.PolicyFile, opts.Timeout)
		return store, store, nil
	}
	store := assets.NewFileStore(opts.Dir, opts.ChunksFile, opts.PolicyFile, logger)
	return store, store, store
}

// buildCounter returns a nil counter for the "none" backend, which disables
// the daily limit.
func buildCounter(opts config.LimitOptions) (ports.UsageCounter, func() error, error) {
	switch opts.Backend {
	case config.BackendNone:
		return nil, nil, nil
	case "", config.BackendMemory:
		return usage.NewMemoryCounter(), nil, nil
	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPass,
			DB:       opts.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", opts.RedisAddr, err)
		}
		return usage.NewRedisCounter(client, opts.RedisPrefix), client.Close, nil
	case config.BackendSQLite:
		counter, err := usage.NewSQLiteCounter(opts.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening usage database: %w", err)
		}
		return counter, counter.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown usage backend %q", opts.Backend)
	}
}

// Close releases counters and connections in reverse order.
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
