package debate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	streamMaxLen   = 10000
	publishBuffer  = 1024
	publishTimeout = 2 * time.Second
)

type publishJob struct {
	debateID string
	event    *Event
}

// StreamPublisher appends events to Redis streams from a single worker so
// callers never wait on Redis.
type StreamPublisher struct {
	rdb    *redis.Client
	jobs   chan publishJob
	now    func() time.Time
	logger *slog.Logger
}

func NewStreamPublisher(rdb *redis.Client, logger *slog.Logger) *StreamPublisher {
	return &StreamPublisher{
		rdb:    rdb,
		jobs:   make(chan publishJob, publishBuffer),
		now:    time.Now,
		logger: logger,
	}
}

// Publish encodes payload and queues it. When the queue is full the event
// is dropped.
func (p *StreamPublisher) Publish(debateID, eventType string, payload any) {
	event, err := NewEvent(eventType, payload, p.now())
	if err != nil {
		p.logger.Error("failed to build stream event", "debate", debateID, "type", eventType, "error", err)
		return
	}
	p.PublishEvent(debateID, event)
}

func (p *StreamPublisher) PublishEvent(debateID string, event *Event) {
	select {
	case p.jobs <- publishJob{debateID: debateID, event: event}:
	default:
		p.logger.Warn("stream publish queue full, dropping event", "debate", debateID, "type", event.Type)
	}
}

// Run writes queued events until ctx is cancelled, then flushes what is
// already queued.
func (p *StreamPublisher) Run(ctx context.Context) error {
	for {
		select {
		case job := <-p.jobs:
			p.write(ctx, job)
		case <-ctx.Done():
			flush := context.WithoutCancel(ctx)
			for {
				select {
				case job := <-p.jobs:
					p.write(flush, job)
				default:
					return nil
				}
			}
		}
	}
}

func (p *StreamPublisher) write(ctx context.Context, job publishJob) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.add(ctx, job.debateID, job.event); err != nil {
		p.logger.Warn("failed to publish event", "debate", job.debateID, "type", job.event.Type, "error", err)
	}
}

// add appends event to the debate's stream, trimming old history.
func (p *StreamPublisher) add(ctx context.Context, debateID string, event *Event) error {
	eventData, err := MarshalEvent(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(debateID),
		Values: map[string]interface{}{"data": eventData},
		MaxLen: streamMaxLen,
		Approx: true,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
