package collector

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/welcomer/internal/log"
	"github.com/felixgeelhaar/welcomer/internal/metrics"
)

// DefaultBuffer is the per-subscription event buffer.
const DefaultBuffer = 16

// settleTimeout bounds the acknowledgement of one leftover interaction.
const settleTimeout = 3 * time.Second

// Dispatcher fans platform events out to the collectors waiting on a
// channel. Publishing never blocks: a full subscription drops the event.
type Dispatcher struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]chan Event
	nextID uint64
	buffer int

	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a Dispatcher. A non-positive buffer uses DefaultBuffer.
func NewDispatcher(buffer int, logger *log.Logger, m *metrics.Metrics) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Dispatcher{
		subs:    make(map[string]map[uint64]chan Event),
		buffer:  buffer,
		logger:  log.OrDiscard(logger).With("component", "dispatcher"),
		metrics: m,
	}
}

// Subscription receives the events published for one channel.
type Subscription struct {
	C <-chan Event

	once  sync.Once
	close func()
}

// Close stops delivery and acknowledges component events still buffered,
// such as a second click that arrived after the answer was taken. It is
// safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.close)
}

// Subscribe starts receiving events for channelID.
func (d *Dispatcher) Subscribe(channelID string) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	ch := make(chan Event, d.buffer)
	if d.subs[channelID] == nil {
		d.subs[channelID] = make(map[uint64]chan Event)
	}
	d.subs[channelID][id] = ch

	return &Subscription{
		C: ch,
		close: func() {
			d.mu.Lock()
			delete(d.subs[channelID], id)
			if len(d.subs[channelID]) == 0 {
				delete(d.subs, channelID)
			}
			d.mu.Unlock()
			d.settle(ch)
		},
	}
}

// settle drains a removed subscription. Publish holds d.mu while sending,
// so nothing can be added once the subscription is out of the map.
func (d *Dispatcher) settle(ch chan Event) {
	for {
		select {
		case ev := <-ch:
			d.metrics.RecordIgnoredEvent(reasonLate)
			if ev.Responder == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
			if err := ev.Responder.Acknowledge(ctx); err != nil {
				d.logger.WithError(err).Warn("failed to acknowledge late interaction",
					"channel_id", ev.ChannelID, "message_id", ev.MessageID, "member_id", ev.MemberID)
			}
			cancel()
		default:
			return
		}
	}
}

// Publish delivers ev to every subscription of its channel and reports
// whether at least one received it.
func (d *Dispatcher) Publish(ev Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	delivered := false
	for _, ch := range d.subs[ev.ChannelID] {
		select {
		case ch <- ev:
			delivered = true
		default:
			d.metrics.RecordDroppedEvent()
			d.logger.Warn("subscriber full, dropping event",
				"channel_id", ev.ChannelID, "message_id", ev.MessageID, "member_id", ev.MemberID)
		}
	}
	return delivered
}

// Subscribers returns the number of open subscriptions for channelID.
func (d *Dispatcher) Subscribers(channelID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs[channelID])
}
