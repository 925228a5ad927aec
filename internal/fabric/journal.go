// internal/fabric/journal.go
package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultJournalQueue is the Redis list that downstream consumers (chat
// pipeline, analytics) drain for room events.
const DefaultJournalQueue = "mindwars_room_events"

// Journal appends every published room event to a Redis queue. It lives in a
// different failure domain than the store: an append failure after a
// committed mutation degrades to an ack warning, never an error.
type Journal struct {
	rdb   *redis.Client
	queue string
}

// NewJournal connects the journal client and verifies it with a bounded ping.
func NewJournal(addr, queue string) (*Journal, error) {
	if queue == "" {
		queue = DefaultJournalQueue
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &Journal{rdb: rdb, queue: queue}, nil
}

// journalRecord is the wire shape pushed onto the queue.
type journalRecord struct {
	Room      string                 `json:"room"`
	Event     map[string]interface{} `json:"event"`
	Timestamp int64                  `json:"timestamp"`
}

// Append serializes the event and pushes it to the queue.
func (j *Journal) Append(ctx context.Context, room string, event map[string]interface{}) error {
	data, err := json.Marshal(journalRecord{
		Room:      room,
		Event:     event,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	if err := j.rdb.RPush(ctx, j.queue, data).Err(); err != nil {
		return fmt.Errorf("rpush to %q: %w", j.queue, err)
	}
	return nil
}

// Close releases the Redis client.
func (j *Journal) Close() error {
	return j.rdb.Close()
}
