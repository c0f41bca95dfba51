package truthsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/insightdelivered/order-reconciler/internal/models"
)

const cachePrefix = "reconciler:truth"

// Cached memoizes successful lookups of the wrapped source in Redis.
// Failed lookups are never cached. Redis errors are logged and the call
// falls through to the wrapped source; a nil Redis client disables caching.
type Cached struct {
	Source Source
	Redis  *redis.Client
	TTL    time.Duration
	Logger logrus.FieldLogger
}

// NewCached wraps src. When rdb is nil src is returned unchanged.
func NewCached(src Source, rdb *redis.Client, ttl time.Duration, logger logrus.FieldLogger) Source {
	if rdb == nil {
		return src
	}
	return &Cached{Source: src, Redis: rdb, TTL: ttl, Logger: logger}
}

func (c *Cached) GetOrder(ctx context.Context, mode models.SourceMode, orderNumber string) (*models.OrderRecord, error) {
	key := orderCacheKey(mode, "order", orderNumber)

	var cached models.OrderRecord
	if c.get(ctx, key, &cached) {
		if !cached.Exists {
			return nil, nil
		}
		return &cached, nil
	}

	rec, err := c.Source.GetOrder(ctx, mode, orderNumber)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		c.set(ctx, key, models.OrderRecord{OrderNumber: orderNumber})
	} else {
		c.set(ctx, key, rec)
	}
	return rec, nil
}

func (c *Cached) GetActivity(ctx context.Context, mode models.SourceMode, orderNumber string) ([]models.ActivityPackage, error) {
	key := orderCacheKey(mode, "activity", orderNumber)
	return c.packages(ctx, key, func() ([]models.ActivityPackage, error) {
		return c.Source.GetActivity(ctx, mode, orderNumber)
	})
}

func (c *Cached) FindByTracking(ctx context.Context, mode models.SourceMode, trackingNumber string, hint models.Date) ([]models.ActivityPackage, error) {
	key := fmt.Sprintf("%s:%s:tracking:%s:%s", cachePrefix, mode, normalizeTracking(trackingNumber), hint)
	return c.packages(ctx, key, func() ([]models.ActivityPackage, error) {
		return c.Source.FindByTracking(ctx, mode, trackingNumber, hint)
	})
}

func (c *Cached) packages(ctx context.Context, key string, fetch func() ([]models.ActivityPackage, error)) ([]models.ActivityPackage, error) {
	var cached []models.ActivityPackage
	if c.get(ctx, key, &cached) {
		return cached, nil
	}
	pkgs, err := fetch()
	if err != nil {
		return nil, err
	}
	if pkgs == nil {
		pkgs = []models.ActivityPackage{}
	}
	c.set(ctx, key, pkgs)
	return pkgs, nil
}

func (c *Cached) get(ctx context.Context, key string, dest any) bool {
	if c.Redis == nil {
		return false
	}
	val, err := c.Redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn(key, "get", err)
		}
		return false
	}
	if err := json.Unmarshal(val, dest); err != nil {
		c.warn(key, "decode", err)
		return false
	}
	return true
}

func (c *Cached) set(ctx context.Context, key string, obj any) {
	if c.Redis == nil {
		return
	}
	b, err := json.Marshal(obj)
	if err != nil {
		c.warn(key, "encode", err)
		return
	}
	if err := c.Redis.Set(ctx, key, b, c.TTL).Err(); err != nil {
		c.warn(key, "set", err)
	}
}

func (c *Cached) warn(key, op string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.WithFields(logrus.Fields{"key": key, "op": op}).Warn("truth source cache: " + err.Error())
}

// orderCacheKey keys on the order number as sent. The truth source may treat
// "po-1" and "PO-1" as different orders.
func orderCacheKey(mode models.SourceMode, kind, orderNumber string) string {
	return fmt.Sprintf("%s:%s:%s:%s", cachePrefix, mode, kind, strings.TrimSpace(orderNumber))
}
