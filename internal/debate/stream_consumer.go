package debate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DebateHub receives the events read from a debate's stream.
type DebateHub interface {
	BroadcastToDebate(debateID string, event *Event)
}

const (
	consumerBatch   = 100
	consumerBlock   = time.Second
	reclaimIdle     = 30 * time.Second
	reclaimEvery    = 10 * time.Second
	consumerBackoff = time.Second
)

// StreamConsumer forwards a debate's stream to the local spectator hub.
// Every instance reads through its own consumer group, so each one sees
// every event.
type StreamConsumer struct {
	rdb          *redis.Client
	consumerName string
	instanceID   string
	hub          DebateHub
	logger       *slog.Logger
}

func NewStreamConsumer(rdb *redis.Client, hub DebateHub, logger *slog.Logger) *StreamConsumer {
	hostname, _ := os.Hostname()
	instanceID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	return &StreamConsumer{
		rdb:          rdb,
		consumerName: "consumer-" + instanceID,
		instanceID:   instanceID,
		hub:          hub,
		logger:       logger,
	}
}

func (sc *StreamConsumer) groupName(debateID string) string {
	return fmt.Sprintf("debate:%s:group:%s", debateID, sc.instanceID)
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// Consume reads debateID's stream until ctx is cancelled. Only events
// added after the call are delivered. The group is removed on return.
func (sc *StreamConsumer) Consume(ctx context.Context, debateID string) error {
	streamKey := StreamKey(debateID)
	groupName := sc.groupName(debateID)

	if err := sc.rdb.XGroupCreateMkStream(ctx, streamKey, groupName, "$").Err(); err != nil && !isBusyGroup(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	defer func() {
		cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := sc.rdb.XGroupDestroy(cleanup, streamKey, groupName).Err(); err != nil {
			sc.logger.Warn("failed to remove consumer group", "debate", debateID, "error", err)
		}
	}()

	lastReclaim := time.Now()
	for {
		streams, err := sc.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    groupName,
			Consumer: sc.consumerName,
			Streams:  []string{streamKey, ">"},
			Count:    consumerBatch,
			Block:    consumerBlock,
		}).Result()
		if ctx.Err() != nil {
			return nil
		}
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			sc.logger.Warn("stream read failed", "debate", debateID, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(consumerBackoff):
			}
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				sc.handle(ctx, debateID, streamKey, groupName, message)
			}
		}

		if time.Since(lastReclaim) >= reclaimEvery {
			lastReclaim = time.Now()
			sc.reclaimPendingMessages(ctx, debateID, streamKey, groupName)
		}
	}
}

func (sc *StreamConsumer) handle(ctx context.Context, debateID, streamKey, groupName string, message redis.XMessage) {
	if err := sc.processMessage(debateID, message); err != nil {
		sc.logger.Warn("dropping stream message", "debate", debateID, "id", message.ID, "error", err)
	}
	// Undecodable entries are acknowledged too; retrying cannot fix them.
	if err := sc.rdb.XAck(ctx, streamKey, groupName, message.ID).Err(); err != nil {
		sc.logger.Warn("failed to ack stream message", "debate", debateID, "id", message.ID, "error", err)
	}
}

// processMessage decodes a stream entry and hands it to the hub.
func (sc *StreamConsumer) processMessage(debateID string, message redis.XMessage) error {
	eventData, ok := message.Values["data"].(string)
	if !ok {
		return fmt.Errorf("invalid message format: missing data field")
	}
	event, err := UnmarshalEvent(eventData)
	if err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	sc.hub.BroadcastToDebate(debateID, event)
	return nil
}

// reclaimPendingMessages redelivers entries this consumer read but never
// acknowledged.
func (sc *StreamConsumer) reclaimPendingMessages(ctx context.Context, debateID, streamKey, groupName string) {
	pending, err := sc.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: streamKey,
		Group:  groupName,
		Start:  "-",
		End:    "+",
		Count:  consumerBatch,
	}).Result()
	if err != nil {
		return
	}

	var stale []string
	for _, p := range pending {
		if p.Idle > reclaimIdle {
			stale = append(stale, p.ID)
		}
	}
	if len(stale) == 0 {
		return
	}
	claimed, err := sc.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   streamKey,
		Group:    groupName,
		Consumer: sc.consumerName,
		MinIdle:  reclaimIdle,
		Messages: stale,
	}).Result()
	if err != nil {
		sc.logger.Warn("failed to reclaim stream messages", "debate", debateID, "error", err)
		return
	}
	for _, msg := range claimed {
		sc.handle(ctx, debateID, streamKey, groupName, msg)
	}
}
