package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/contentpulse/backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

type StreamsConfig struct {
	Addr        string
	Password    string
	DB          int
	Stream      string
	DLQStream   string
	Group       string
	Consumer    string
	MaxAttempts int
}

func (cfg StreamsConfig) withDefaults() StreamsConfig {
	if cfg.Stream == "" {
		cfg.Stream = "cp_jobs"
	}
	if cfg.DLQStream == "" {
		cfg.DLQStream = "cp_jobs_dlq"
	}
	if cfg.Group == "" {
		cfg.Group = "cp_workers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "api-1"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return cfg
}

// StreamsQueue implements Producer and Consumer on Redis Streams with a
// consumer group. Exhausted and unparseable messages land on a DLQ stream.
type StreamsQueue struct {
	client *redis.Client
	cfg    StreamsConfig
}

func NewStreamsQueue(ctx context.Context, cfg StreamsConfig) (*StreamsQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	cfg = cfg.withDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	queue := &StreamsQueue{client: client, cfg: cfg}
	if err := queue.ensureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return queue, nil
}

func (q *StreamsQueue) Close() error {
	return q.client.Close()
}

func (q *StreamsQueue) Enqueue(ctx context.Context, message domain.QueueMessage) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.cfg.Stream,
		Values: encodeMessage(message),
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue to stream: %w", err)
	}
	return nil
}

func (q *StreamsQueue) EnqueueBatch(ctx context.Context, messages []domain.QueueMessage) error {
	if len(messages) == 0 {
		return nil
	}
	pipeline := q.client.Pipeline()
	for _, message := range messages {
		pipeline.XAdd(ctx, &redis.XAddArgs{
			Stream: q.cfg.Stream,
			Values: encodeMessage(message),
		})
	}
	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue batch to stream: %w", err)
	}
	return nil
}

func (q *StreamsQueue) Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.cfg.Group,
			Consumer: q.cfg.Consumer,
			Streams:  []string{q.cfg.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				q.handleEntry(ctx, entry, handler)
			}
		}
	}
}

func (q *StreamsQueue) handleEntry(ctx context.Context, entry redis.XMessage, handler func(context.Context, domain.QueueMessage) error) {
	message, err := decodeMessage(entry.Values)
	if err != nil {
		_ = q.park(ctx, domain.QueueMessage{}, entry.ID, err.Error())
		_ = q.settle(ctx, entry.ID)
		return
	}

	if err := handler(ctx, message); err != nil {
		message.Attempt++
		if message.Attempt >= q.cfg.MaxAttempts {
			_ = q.park(ctx, message, entry.ID, err.Error())
		} else if requeueErr := q.Enqueue(ctx, message); requeueErr != nil {
			_ = q.park(ctx, message, entry.ID, fmt.Sprintf("requeue failed: %v", requeueErr))
		}
	}
	_ = q.settle(ctx, entry.ID)
}

func (q *StreamsQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "$").Err()
	if err == nil || strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("ensure stream group: %w", err)
}

// settle acks the entry for the group and removes it from the stream.
func (q *StreamsQueue) settle(ctx context.Context, entryID string) error {
	if err := q.client.XAck(ctx, q.cfg.Stream, q.cfg.Group, entryID).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	if err := q.client.XDel(ctx, q.cfg.Stream, entryID).Err(); err != nil {
		return fmt.Errorf("xdel: %w", err)
	}
	return nil
}

func (q *StreamsQueue) park(ctx context.Context, message domain.QueueMessage, entryID, reason string) error {
	values := encodeMessage(message)
	values["stream_id"] = entryID
	values["error"] = reason
	values["moved_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	if err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.cfg.DLQStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("send to dlq: %w", err)
	}
	return nil
}

func encodeMessage(message domain.QueueMessage) map[string]any {
	return map[string]any{
		"job_id":       message.JobID,
		"kind":         string(message.Kind),
		"target_id":    message.TargetID,
		"report_id":    message.ReportID,
		"attempt":      message.Attempt,
		"requested_at": message.RequestedAt.Format(time.RFC3339Nano),
	}
}

func decodeMessage(values map[string]any) (domain.QueueMessage, error) {
	field := func(key string) (string, error) {
		value, ok := values[key]
		if !ok {
			return "", fmt.Errorf("missing field %s", key)
		}
		switch typed := value.(type) {
		case string:
			return typed, nil
		case []byte:
			return string(typed), nil
		default:
			return fmt.Sprint(typed), nil
		}
	}

	var message domain.QueueMessage
	var err error

	if message.JobID, err = field("job_id"); err != nil {
		return domain.QueueMessage{}, err
	}
	kind, err := field("kind")
	if err != nil {
		return domain.QueueMessage{}, err
	}
	message.Kind = domain.JobKind(kind)
	if message.TargetID, err = field("target_id"); err != nil {
		return domain.QueueMessage{}, err
	}
	if message.ReportID, err = field("report_id"); err != nil {
		return domain.QueueMessage{}, err
	}

	attempt, err := field("attempt")
	if err != nil {
		return domain.QueueMessage{}, err
	}
	if message.Attempt, err = strconv.Atoi(attempt); err != nil {
		return domain.QueueMessage{}, fmt.Errorf("invalid attempt: %w", err)
	}

	requestedAt, err := field("requested_at")
	if err != nil {
		return domain.QueueMessage{}, err
	}
	if message.RequestedAt, err = time.Parse(time.RFC3339Nano, requestedAt); err != nil {
		return domain.QueueMessage{}, fmt.Errorf("invalid requested_at: %w", err)
	}
	return message, nil
}
