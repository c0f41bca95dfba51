package config

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/insightdelivered/order-reconciler/internal/reconcile"
	"github.com/insightdelivered/order-reconciler/internal/truthsource"
)

// TruthSource builds the configured truth source: the HTTP client when a URL
// is set, else the fixture file, else nil. When REDIS_ADDRESS is set and
// reachable, lookups are cached. The returned close func is never nil.
func (c *Config) TruthSource(ctx context.Context, logger *logrus.Logger) (truthsource.Source, func(), error) {
	noop := func() {}

	var src truthsource.Source
	switch {
	case c.TruthSourceURL != "":
		client, err := truthsource.NewClient(truthsource.ClientConfig{
			BaseURL:        c.TruthSourceURL,
			ConsumerKey:    c.TruthSourceConsumerKey,
			ConsumerSecret: c.TruthSourceConsumerSecret,
			TokenKey:       c.TruthSourceTokenKey,
			TokenSecret:    c.TruthSourceTokenSecret,
			Realm:          c.TruthSourceRealm,
			Timeout:        c.LookupTimeout,
			RetryCount:     c.RetryCount,
			RateLimit:      c.RateLimit,
			RateBurst:      c.RateBurst,
		})
		if err != nil {
			return nil, noop, err
		}
		src = client
	case c.TruthSourceFixture != "":
		static, err := truthsource.LoadStatic(c.TruthSourceFixture)
		if err != nil {
			return nil, noop, err
		}
		src = static
	default:
		return nil, noop, nil
	}

	if c.RedisAddress == "" {
		return src, noop, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddress})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		LogError(logger, "config", "TruthSource", "redis unreachable, caching disabled", c.RedisAddress, err)
		rdb.Close()
		return src, noop, nil
	}
	logger.WithField("addr", c.RedisAddress).Info("truth source cache enabled")

	closeFn := func() {
		if err := rdb.Close(); err != nil {
			LogError(logger, "config", "TruthSource", "closing redis", nil, err)
		}
	}
	return truthsource.NewCached(src, rdb, c.CacheTTL, logger), closeFn, nil
}

// EngineConfig maps settings onto the reconciliation engine.
func (c *Config) EngineConfig(src truthsource.Source, logger *logrus.Logger) reconcile.Config {
	return reconcile.Config{
		Source: src,
		Policy: &reconcile.Policy{
			DateToleranceDays: c.DateToleranceDays,
			PartyDriftPercent: c.PartyDriftPercent,
		},
		MaxConcurrency: c.MaxConcurrency,
		RequestTimeout: c.RequestTimeout,
		Logger:         logger,
	}
}

// MaxUploadBytes is the request body limit for uploads.
func (c *Config) MaxUploadBytes() int {
	return c.MaxUploadMB << 20
}

func (c *Config) String() string {
	return fmt.Sprintf("port=%d truthSource=%t redis=%t concurrency=%d", c.Port, c.HasTruthSource(), c.RedisAddress != "", c.MaxConcurrency)
}
