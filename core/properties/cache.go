package properties

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"checkops/core/utils"

	"github.com/go-redis/redis/v8"
)

const cacheKeyPrefix = "checkops:properties:"

// CachedDirectory memoizes lookups of another Directory in redis. Cache failures
// fall through to the wrapped directory.
type CachedDirectory struct {
	next   Directory
	rdb    *redis.Client
	ttl    time.Duration
	logger *utils.Logger
}

func NewCachedDirectory(next Directory, rdb *redis.Client, ttl time.Duration, logger *utils.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedDirectory{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func cameraKey(tenantID, cameraID string) string {
	return cacheKeyPrefix + tenantID + ":camera:" + cameraID
}

func propertyKey(tenantID string, id int64) string {
	return cacheKeyPrefix + tenantID + ":property:" + strconv.FormatInt(id, 10)
}

func (c *CachedDirectory) ResolveProperty(ctx context.Context, tenantID, cameraID string) (int64, error) {
	key := cameraKey(tenantID, cameraID)
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if id, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && id > 0 {
			return id, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Errorf("property cache read failed: %v", err)
	}
	id, err := c.next.ResolveProperty(ctx, tenantID, cameraID)
	if err != nil {
		return 0, err
	}
	if err := c.rdb.Set(ctx, key, strconv.FormatInt(id, 10), c.ttl).Err(); err != nil {
		c.logger.Errorf("property cache write failed: %v", err)
	}
	return id, nil
}

func (c *CachedDirectory) GetProperty(ctx context.Context, tenantID string, propertyID int64) (*Property, error) {
	key := propertyKey(tenantID, propertyID)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var p Property
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Errorf("property cache read failed: %v", err)
	}
	p, err := c.next.GetProperty(ctx, tenantID, propertyID)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode property: %w", err)
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Errorf("property cache write failed: %v", err)
	}
	return p, nil
}
