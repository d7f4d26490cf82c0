// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/modforge/modforge/internal/log"
	"github.com/modforge/modforge/pkg/errors"
)

const (
	// DefaultSubscriberBuffer is the per-subscriber channel depth. A
	// subscriber that falls this far behind the live stream is
	// disconnected rather than allowed to stall publishers.
	DefaultSubscriberBuffer = 256

	// DefaultRetention is how long a closed run's event log stays
	// available for late reconnection before it is dropped.
	DefaultRetention = time.Hour
)

// Config tunes the bus. Zero values take the defaults above.
type Config struct {
	SubscriberBuffer int
	Retention        time.Duration
}

// Bus holds one append-only event log per run and fans live events out to
// subscribers. Sequence numbers are per-run, strictly increasing from 1,
// and assigned under the run's lock so no two events share a number and
// no number is skipped.
type Bus struct {
	logger    *slog.Logger
	buffer    int
	retention time.Duration
	now       func() time.Time

	mu   sync.Mutex
	runs map[string]*runLog
}

// runLog is the per-run state: the event history, the live subscriber
// channels, and the closed flag set once the run reaches a terminal state.
type runLog struct {
	mu      sync.Mutex
	events  []Event
	seq     int64
	subs    map[int]chan Event
	nextSub int
	closed  bool
}

// NewBus creates an event bus.
func NewBus(cfg Config, logger *slog.Logger) *Bus {
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultSubscriberBuffer
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:    log.WithComponent(logger, "events"),
		buffer:    cfg.SubscriberBuffer,
		retention: cfg.Retention,
		now:       time.Now,
		runs:      make(map[string]*runLog),
	}
}

func (b *Bus) run(runID string, create bool) *runLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	rl, ok := b.runs[runID]
	if !ok && create {
		rl = &runLog{subs: make(map[int]chan Event)}
		b.runs[runID] = rl
	}
	return rl
}

// Publish appends an event to the run's log and delivers it to every live
// subscriber. Subscribers whose buffer is full are disconnected. Events
// published after Close are dropped.
func (b *Bus) Publish(runID string, typ Type, payload any) Event {
	rl := b.run(runID, true)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.closed {
		b.logger.Warn("event published to closed run",
			slog.String(log.RunIDKey, runID),
			slog.String(log.EventKey, string(typ)))
		return Event{}
	}

	rl.seq++
	ev := Event{
		RunID:     runID,
		Seq:       rl.seq,
		Type:      typ,
		Payload:   payload,
		Timestamp: b.now().UTC(),
	}
	rl.events = append(rl.events, ev)

	for id, ch := range rl.subs {
		select {
		case ch <- ev:
		default:
			delete(rl.subs, id)
			close(ch)
			b.logger.Warn("disconnecting slow subscriber",
				slog.String(log.RunIDKey, runID),
				slog.Int("subscriber", id),
				slog.Int64("seq", ev.Seq))
		}
	}
	return ev
}

// Subscribe returns a stream of the run's events with seq greater than
// since: first the retained backlog, then live events, with no gaps or
// duplicates at the boundary. The returned cancel func must be called when
// the consumer is done. The stream is closed when the run is closed, the
// subscriber is cancelled, or it falls too far behind.
func (b *Bus) Subscribe(runID string, since int64) (<-chan Event, func(), error) {
	rl := b.run(runID, false)
	if rl == nil {
		return nil, nil, &errors.NotFoundError{Resource: "run", ID: runID}
	}

	// Snapshot the backlog and register the live channel under the same
	// lock hold so nothing published in between is missed or repeated.
	rl.mu.Lock()
	var backlog []Event
	for _, ev := range rl.events {
		if ev.Seq > since {
			backlog = append(backlog, ev)
		}
	}
	var in chan Event
	var id int
	if !rl.closed {
		in = make(chan Event, b.buffer)
		id = rl.nextSub
		rl.nextSub++
		rl.subs[id] = in
	}
	rl.mu.Unlock()

	out := make(chan Event)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for _, ev := range backlog {
			select {
			case out <- ev:
			case <-done:
				return
			}
		}
		if in == nil {
			return
		}
		for {
			select {
			case ev, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if in == nil {
				return
			}
			rl.mu.Lock()
			if _, ok := rl.subs[id]; ok {
				delete(rl.subs, id)
				close(in)
			}
			rl.mu.Unlock()
		})
	}
	return out, cancel, nil
}

// Events returns a copy of the run's retained events with seq greater
// than since.
func (b *Bus) Events(runID string, since int64) ([]Event, error) {
	rl := b.run(runID, false)
	if rl == nil {
		return nil, &errors.NotFoundError{Resource: "run", ID: runID}
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	var out []Event
	for _, ev := range rl.events {
		if ev.Seq > since {
			out = append(out, ev)
		}
	}
	return out, nil
}

// LastSeq returns the highest sequence number published for the run, zero
// if none.
func (b *Bus) LastSeq(runID string) int64 {
	rl := b.run(runID, false)
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.seq
}

// Close marks a run's stream complete, ends every live subscription, and
// schedules the retained log for removal after the retention window. The
// backlog stays replayable in the meantime so late consumers can catch up
// on the terminal events.
func (b *Bus) Close(runID string) {
	rl := b.run(runID, false)
	if rl == nil {
		return
	}

	rl.mu.Lock()
	if rl.closed {
		rl.mu.Unlock()
		return
	}
	rl.closed = true
	for id, ch := range rl.subs {
		delete(rl.subs, id)
		close(ch)
	}
	rl.mu.Unlock()

	time.AfterFunc(b.retention, func() {
		b.mu.Lock()
		delete(b.runs, runID)
		b.mu.Unlock()
	})
}
