package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/contentpulse/backend/internal/domain"
)

type deadLetter struct {
	message domain.QueueMessage
	reason  string
}

// LocalQueue is the in-process fallback used when Redis is not configured.
// Failed deliveries are retried with a growing delay and parked in a dead
// letter list once the attempt budget runs out.
type LocalQueue struct {
	inbox       chan domain.QueueMessage
	maxAttempts int
	logger      *log.Logger

	deadMu sync.Mutex
	dead   []deadLetter
}

func NewLocalQueue(bufferSize, maxAttempts int, logger *log.Logger) *LocalQueue {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &LocalQueue{
		inbox:       make(chan domain.QueueMessage, bufferSize),
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, message domain.QueueMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.inbox <- message:
		return nil
	}
}

func (q *LocalQueue) EnqueueBatch(ctx context.Context, messages []domain.QueueMessage) error {
	for _, message := range messages {
		if err := q.Enqueue(ctx, message); err != nil {
			return err
		}
	}
	return nil
}

func (q *LocalQueue) Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-q.inbox:
			if err := handler(ctx, message); err != nil {
				q.retryOrPark(ctx, message, err)
			}
		}
	}
}

func (q *LocalQueue) retryOrPark(ctx context.Context, message domain.QueueMessage, cause error) {
	message.Attempt++
	if message.Attempt >= q.maxAttempts {
		q.deadMu.Lock()
		q.dead = append(q.dead, deadLetter{message: message, reason: cause.Error()})
		q.deadMu.Unlock()
		if q.logger != nil {
			q.logger.Printf("local queue moved message to DLQ job_id=%s err=%v", message.JobID, cause)
		}
		return
	}

	delay := time.Duration(message.Attempt) * 500 * time.Millisecond
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			q.inbox <- message
		}
	}()
}

func (q *LocalQueue) DLQSize() int {
	q.deadMu.Lock()
	defer q.deadMu.Unlock()
	return len(q.dead)
}
