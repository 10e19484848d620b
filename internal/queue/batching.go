package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/contentpulse/backend/internal/domain"
)

var (
	ErrQueueBackpressure = errors.New("queue backpressure: enqueue buffer is full")
	ErrBatchingClosed    = errors.New("batching producer is closed")
)

type BatchingConfig struct {
	MaxBatchSize       int
	FlushInterval      time.Duration
	FlushTimeout       time.Duration
	QueueCapacity      int
	MaxInFlightBatches int
}

func (cfg BatchingConfig) withDefaults() BatchingConfig {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 32
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 25 * time.Millisecond
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 3 * time.Second
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 2048
	}
	if cfg.MaxInFlightBatches <= 0 {
		cfg.MaxInFlightBatches = 4
	}
	return cfg
}

type batchWriter interface {
	EnqueueBatch(ctx context.Context, messages []domain.QueueMessage) error
}

// pendingWrite is one caller blocked in Enqueue waiting for its batch to land.
type pendingWrite struct {
	ctx     context.Context
	message domain.QueueMessage
	result  chan error
}

// BatchingProducer groups close-in-time enqueues into single stream writes.
// Callers block until their batch is flushed; a full buffer fails fast with
// ErrQueueBackpressure instead of queueing unbounded work.
type BatchingProducer struct {
	base   Producer
	writer batchWriter
	cfg    BatchingConfig

	incoming  chan pendingWrite
	inFlight  chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	parent    <-chan struct{}
}

func NewBatchingProducer(parent context.Context, base Producer, cfg BatchingConfig) *BatchingProducer {
	cfg = cfg.withDefaults()

	producer := &BatchingProducer{
		base:     base,
		cfg:      cfg,
		incoming: make(chan pendingWrite, cfg.QueueCapacity),
		inFlight: make(chan struct{}, cfg.MaxInFlightBatches),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		parent:   parent.Done(),
	}
	if writer, ok := base.(batchWriter); ok {
		producer.writer = writer
	}

	go producer.loop()
	return producer
}

func (p *BatchingProducer) Enqueue(ctx context.Context, message domain.QueueMessage) error {
	if ctx == nil {
		ctx = context.Background()
	}

	write := pendingWrite{ctx: ctx, message: message, result: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrBatchingClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrBatchingClosed
	case p.incoming <- write:
	default:
		return ErrQueueBackpressure
	}

	select {
	case err := <-write.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *BatchingProducer) Close() {
	p.closeOnce.Do(func() {
		close(p.stop)
		<-p.done
	})
}

func (p *BatchingProducer) loop() {
	defer close(p.done)

	var pending []pendingWrite
	flushTimer := time.NewTimer(p.cfg.FlushInterval)
	drainTimer(flushTimer)
	armed := false

	flush := func(final bool) {
		if len(pending) == 0 {
			return
		}
		batch := pending
		pending = nil
		p.flush(batch, final)
	}

	for {
		var due <-chan time.Time
		if armed {
			due = flushTimer.C
		}

		select {
		case <-p.parent:
			drainTimer(flushTimer)
			flush(true)
			return
		case <-p.stop:
			drainTimer(flushTimer)
			flush(true)
			return
		case <-due:
			armed = false
			flush(false)
		case write := <-p.incoming:
			if write.ctx.Err() != nil {
				write.result <- write.ctx.Err()
				continue
			}
			pending = append(pending, write)
			switch {
			case len(pending) >= p.cfg.MaxBatchSize:
				drainTimer(flushTimer)
				armed = false
				flush(false)
			case !armed:
				flushTimer.Reset(p.cfg.FlushInterval)
				armed = true
			}
		}
	}
}

func (p *BatchingProducer) flush(batch []pendingWrite, final bool) {
	live := batch[:0]
	for _, write := range batch {
		if err := write.ctx.Err(); err != nil {
			write.result <- err
			continue
		}
		live = append(live, write)
	}
	if len(live) == 0 {
		return
	}

	// Jobs for the same report land adjacent so a worker drains them together.
	sort.SliceStable(live, func(i, j int) bool {
		left, right := coalesceKey(live[i].message), coalesceKey(live[j].message)
		if left == right {
			return live[i].message.RequestedAt.Before(live[j].message.RequestedAt)
		}
		return left < right
	})

	messages := make([]domain.QueueMessage, len(live))
	for i, write := range live {
		messages[i] = write.message
	}

	flushCtx := context.Background()
	if !final {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(flushCtx, p.cfg.FlushTimeout)
		defer cancel()
	}

	select {
	case p.inFlight <- struct{}{}:
	case <-flushCtx.Done():
		for _, write := range live {
			write.result <- flushCtx.Err()
		}
		return
	}
	defer func() { <-p.inFlight }()

	err := p.write(flushCtx, messages)
	for _, write := range live {
		write.result <- err
	}
}

func (p *BatchingProducer) write(ctx context.Context, messages []domain.QueueMessage) error {
	if p.writer != nil {
		return p.writer.EnqueueBatch(ctx, messages)
	}
	for _, message := range messages {
		if err := p.base.Enqueue(ctx, message); err != nil {
			return err
		}
	}
	return nil
}

func coalesceKey(message domain.QueueMessage) string {
	return message.ReportID + "|" + string(message.Kind) + "|" + message.TargetID
}

func drainTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
