// Package queue reads and purges the Redis queues the import jobs feed.
//
// Each queue id owns three keys: the list "<id>" of visible messages, the
// list "<id>:processing" of claimed messages and the sorted set
// "<id>:delayed" of messages waiting for their retry time.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/lakeflow/pkg/models"
	"github.com/dukex/lakeflow/pkg/protocol"
	redis "github.com/redis/go-redis/v9"
)

var ErrEmptyQueueID = errors.New("queue id is empty")

type Options struct {
	Addr     string
	Password string
	DB       int
}

type Queues struct {
	client redis.UniversalClient
	logger *slog.Logger
	now    func() time.Time
}

// Connect opens a Redis client for opts and checks it answers.
func Connect(ctx context.Context, logger *slog.Logger, opts Options) (*Queues, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return New(client, logger), nil
}

func New(client redis.UniversalClient, logger *slog.Logger) *Queues {
	return &Queues{client: client, logger: logger.With("module", "queue"), now: time.Now}
}

func (q *Queues) Close() error {
	return q.client.Close()
}

func processingKey(id string) string {
	return id + ":processing"
}

func delayedKey(id string) string {
	return id + ":delayed"
}

// Snapshot reads the three counters of queue id in one round trip.
func (q *Queues) Snapshot(ctx context.Context, id string) (models.QueueSnapshot, error) {
	if id == "" {
		return models.QueueSnapshot{}, protocol.DomainInvalid(ErrEmptyQueueID)
	}

	var visible, inFlight, delayed *redis.IntCmd

	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		visible = pipe.LLen(ctx, id)
		inFlight = pipe.LLen(ctx, processingKey(id))
		delayed = pipe.ZCard(ctx, delayedKey(id))

		return nil
	})
	if err != nil {
		return models.QueueSnapshot{}, classify(ctx, fmt.Errorf("snapshot %s: %w", id, err))
	}

	return models.QueueSnapshot{
		Visible:  visible.Val(),
		InFlight: inFlight.Val(),
		Delayed:  delayed.Val(),
	}, nil
}

// Purge deletes every message of queue id, claimed and delayed ones included.
func (q *Queues) Purge(ctx context.Context, id string) (int64, error) {
	if id == "" {
		return 0, protocol.DomainInvalid(ErrEmptyQueueID)
	}

	deleted, err := q.client.Del(ctx, id, processingKey(id), delayedKey(id)).Result()
	if err != nil {
		return 0, classify(ctx, fmt.Errorf("purge %s: %w", id, err))
	}

	q.logger.InfoContext(ctx, "Queue purged", "queue", id, "keys", deleted)

	return deleted, nil
}

// Push appends message to the visible messages of queue id.
func (q *Queues) Push(ctx context.Context, id, message string) error {
	return q.client.RPush(ctx, id, message).Err()
}

// Claim moves the oldest visible message to the processing list. It returns
// false when the queue has no visible message.
func (q *Queues) Claim(ctx context.Context, id string) (string, bool, error) {
	message, err := q.client.LMove(ctx, id, processingKey(id), "LEFT", "RIGHT").Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return message, true, nil
}

// Ack removes a claimed message for good.
func (q *Queues) Ack(ctx context.Context, id, message string) error {
	return q.client.LRem(ctx, processingKey(id), 1, message).Err()
}

// Defer moves a claimed message to the delayed set until at.
func (q *Queues) Defer(ctx context.Context, id, message string, at time.Time) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, processingKey(id), 1, message)
		pipe.ZAdd(ctx, delayedKey(id), redis.Z{Score: float64(at.UnixMilli()), Member: message})

		return nil
	})

	return err
}

// PromoteDue makes the delayed messages whose time has come visible again and
// returns how many it moved.
func (q *Queues) PromoteDue(ctx context.Context, id string) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, delayedKey(id), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0

	for _, message := range due {
		removed, err := q.client.ZRem(ctx, delayedKey(id), message).Result()
		if err != nil {
			return moved, err
		}

		// Another consumer promoted it first.
		if removed == 0 {
			continue
		}

		err = q.client.RPush(ctx, id, message).Err()
		if err != nil {
			return moved, err
		}

		moved++
	}

	return moved, nil
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return protocol.ClientTimeout(err)
	}

	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		if strings.HasPrefix(redisErr.Error(), "OOM") {
			return protocol.ResourceExhausted(err)
		}

		return protocol.DomainInvalid(err)
	}

	return protocol.Transient(err)
}
