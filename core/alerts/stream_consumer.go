package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkops/config"
	"checkops/core/utils"

	"github.com/go-redis/redis/v8"
	"github.com/gofrs/uuid/v5"
)

// Processor handles one decoded alert. *Generator implements it.
type Processor interface {
	Process(ctx context.Context, a Alert) Outcome
}

// StreamConsumer reads alerts from a Redis stream through a consumer group. Each
// entry carries the alert JSON in its "data" field. Entries are acknowledged once
// processed, except transient failures which stay pending and are claimed again
// after they have been idle for retryIdle.
type StreamConsumer struct {
	rdb       *redis.Client
	proc      Processor
	stream    string
	group     string
	consumer  string
	batch     int64
	block     time.Duration
	retryIdle time.Duration
	logger    *utils.Logger
}

func NewStreamConsumer(rdb *redis.Client, proc Processor, cfg config.AlertsConfig, logger *utils.Logger) *StreamConsumer {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = "checkops-" + uuid.Must(uuid.NewV4()).String()[:8]
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 10
	}
	retryIdle := cfg.RetryIdle
	if retryIdle <= 0 {
		retryIdle = 30 * time.Second
	}
	return &StreamConsumer{
		rdb:       rdb,
		proc:      proc,
		stream:    cfg.Stream,
		group:     cfg.Group,
		consumer:  consumer,
		batch:     batch,
		block:     5 * time.Second,
		retryIdle: retryIdle,
		logger:    logger,
	}
}

// EnsureGroup creates the consumer group (and the stream) when missing.
func (c *StreamConsumer) EnsureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", c.group, c.stream, err)
	}
	return nil
}

// Run consumes until ctx is cancelled. Read errors back off exponentially up to 30s.
func (c *StreamConsumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}
	c.logger.Infow("alert stream consumer started", "stream", c.stream, "group", c.group, "consumer", c.consumer)

	// entries left pending by an earlier run of this consumer come first
	if _, err := c.ReplayPending(ctx); err != nil && ctx.Err() == nil {
		c.logger.Errorw("alert stream pending replay failed", "error", err.Error())
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	lastReclaim := time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(lastReclaim) >= c.retryIdle {
			lastReclaim = time.Now()
			if _, err := c.ReclaimPending(ctx); err != nil && ctx.Err() == nil {
				sourceErrors.WithLabelValues("redis", "reclaim").Inc()
				c.logger.Errorw("alert stream reclaim failed", "error", err.Error())
			}
		}
		_, err := c.ConsumeOnce(ctx, ">")
		if err == nil {
			backoff = time.Second
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		sourceErrors.WithLabelValues("redis", "read").Inc()
		c.logger.Errorw("alert stream read failed", "error", err.Error(), "backoff", backoff.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// ConsumeOnce reads one batch starting at id (">" for new entries, "0" for this
// consumer's pending ones) and returns how many entries were handled.
func (c *StreamConsumer) ConsumeOnce(ctx context.Context, id string) (int, error) {
	handled, _, err := c.consume(ctx, id)
	return handled, err
}

// ReplayPending walks this consumer's whole pending list once, batch by batch.
// Entries that ask for a retry stay pending and are left to ReclaimPending.
func (c *StreamConsumer) ReplayPending(ctx context.Context) (int, error) {
	total := 0
	from := "0"
	for {
		handled, last, err := c.consume(ctx, from)
		total += handled
		if err != nil {
			return total, err
		}
		if handled == 0 || last == "" {
			return total, nil
		}
		from = last
	}
}

// ReclaimPending claims entries of the group that have been pending for at least
// retryIdle, whichever consumer they were delivered to, and processes them again.
func (c *StreamConsumer) ReclaimPending(ctx context.Context) (int, error) {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Idle:   c.retryIdle,
		Start:  "-",
		End:    "+",
		Count:  c.batch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}
	msgs, err := c.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.retryIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("claim pending: %w", err)
	}
	return c.handleBatch(ctx, msgs)
}

func (c *StreamConsumer) consume(ctx context.Context, id string) (int, string, error) {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, id},
		Count:    c.batch,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", err
	}
	handled := 0
	last := ""
	for _, s := range streams {
		n, err := c.handleBatch(ctx, s.Messages)
		handled += n
		if err != nil {
			return handled, last, err
		}
		if len(s.Messages) > 0 {
			last = s.Messages[len(s.Messages)-1].ID
		}
	}
	return handled, last, nil
}

func (c *StreamConsumer) handleBatch(ctx context.Context, msgs []redis.XMessage) (int, error) {
	handled := 0
	for _, msg := range msgs {
		if c.handle(ctx, msg) {
			if err := c.rdb.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
				return handled, fmt.Errorf("ack %s: %w", msg.ID, err)
			}
		}
		handled++
	}
	return handled, nil
}

// handle reports whether the entry may be acknowledged.
func (c *StreamConsumer) handle(ctx context.Context, msg redis.XMessage) bool {
	raw, ok := msg.Values["data"]
	if !ok {
		sourceErrors.WithLabelValues("redis", "decode").Inc()
		c.logger.Warnw("alert stream entry without data field", "id", msg.ID)
		return true
	}
	var payload []byte
	switch v := raw.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		payload = []byte(fmt.Sprint(v))
	}
	alert, err := DecodeAlert(payload)
	if err != nil {
		sourceErrors.WithLabelValues("redis", "decode").Inc()
		c.logger.Warnw("alert stream entry is not valid alert json", "id", msg.ID, "error", err.Error())
		return true
	}
	out := c.proc.Process(ctx, alert)
	return !out.Retry
}

// DecodeAlert parses one alert payload.
func DecodeAlert(payload []byte) (Alert, error) {
	var a Alert
	if err := json.Unmarshal(payload, &a); err != nil {
		return Alert{}, err
	}
	return a, nil
}

// PublishAlert appends an alert to a stream in the format StreamConsumer reads.
func PublishAlert(ctx context.Context, rdb *redis.Client, stream string, a Alert) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
}
