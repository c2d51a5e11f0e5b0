package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"monopolis-server/protocol"
)

// ErrTruncated means events after the requested sequence number have been
// trimmed and the caller needs a snapshot instead.
var ErrTruncated = errors.New("event log truncated")

// Log stores the sequenced events of each room for replay.
type Log interface {
	Append(ctx context.Context, roomID string, ev protocol.Event) error
	// Since returns the retained events with Seq > afterSeq in order.
	Since(ctx context.Context, roomID string, afterSeq uint64) ([]protocol.Event, error)
	Delete(ctx context.Context, roomID string) error
}

// Replay returns every event in (afterSeq, head], or ErrTruncated when the
// log no longer holds all of them.
func Replay(ctx context.Context, l Log, roomID string, afterSeq, head uint64) ([]protocol.Event, error) {
	if afterSeq >= head {
		return nil, nil
	}
	events, err := l.Since(ctx, roomID, afterSeq)
	if err != nil {
		return nil, err
	}
	if uint64(len(events)) != head-afterSeq || events[0].Seq != afterSeq+1 {
		return nil, fmt.Errorf("room %s after %d: %w", roomID, afterSeq, ErrTruncated)
	}
	return events, nil
}

// Memory keeps the last Capacity events per room in process memory.
type Memory struct {
	Capacity int

	mu    sync.Mutex
	rooms map[string][]protocol.Event
}

// NewMemory returns an in-process log. A capacity of zero or less keeps everything.
func NewMemory(capacity int) *Memory {
	return &Memory{Capacity: capacity, rooms: make(map[string][]protocol.Event)}
}

func (m *Memory) Append(_ context.Context, roomID string, ev protocol.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := append(m.rooms[roomID], ev)
	if m.Capacity > 0 && len(events) > m.Capacity {
		events = append([]protocol.Event(nil), events[len(events)-m.Capacity:]...)
	}
	m.rooms[roomID] = events
	return nil
}

func (m *Memory) Since(_ context.Context, roomID string, afterSeq uint64) ([]protocol.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []protocol.Event
	for _, ev := range m.rooms[roomID] {
		if ev.Seq > afterSeq {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	return nil
}
