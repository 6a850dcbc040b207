package suggester

import (
	"context"
	"time"
)

// EventKind is one of the ordered event kinds of §4.6.4.
type EventKind string

const (
	EventStart        EventKind = "start"
	EventItemsLoaded  EventKind = "items_loaded"
	EventAnalyzing    EventKind = "analyzing"
	EventProgress     EventKind = "progress"
	EventFound        EventKind = "found"
	EventComplete     EventKind = "complete"
	EventError        EventKind = "error"
)

// Event is one frame of the streaming pipeline. Only the fields relevant
// to Kind are populated; the HTTP facade serializes this directly as the
// SSE payload's `event` property (§6.3).
type Event struct {
	Kind EventKind `json:"event"`
	At   time.Time `json:"at,omitempty"`

	UserID    string `json:"user_id,omitempty"`
	WeekStart string `json:"week_start,omitempty"`

	Count int             `json:"count,omitempty"`
	Items []ItemSummary   `json:"items,omitempty"`

	Message string `json:"message,omitempty"`
	Chunk   string `json:"chunk,omitempty"`

	Finding *FindingPayload `json:"finding,omitempty"`

	ItemsAnalyzed         int     `json:"items_analyzed,omitempty"`
	ItemsWithAlternatives int     `json:"items_with_alternatives,omitempty"`
	TotalSavings          float64 `json:"total_savings,omitempty"`
	ProcessingTimeMs      int64   `json:"processing_time_ms,omitempty"`

	ErrorKind string `json:"kind,omitempty"`
}

// ItemSummary is the payload shape for items_loaded (§4.6.4).
type ItemSummary struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Merchant string  `json:"merchant"`
}

// FindingPayload embeds a full Finding for the `found` event.
type FindingPayload struct {
	ItemName             string  `json:"item_name"`
	OriginalPrice        float64 `json:"original_price"`
	OriginalMerchant     string  `json:"original_merchant"`
	AlternativeMerchant  string  `json:"alternative_merchant"`
	AlternativePrice     float64 `json:"alternative_price"`
	ShippingCost         float64 `json:"shipping_cost"`
	TaxEstimate          float64 `json:"tax_estimate"`
	TotalLandedCost      float64 `json:"total_landed_cost"`
	TotalSavings         float64 `json:"total_savings"`
	URL                  string  `json:"url"`
	Notes                string  `json:"notes,omitempty"`
	Channel              string  `json:"channel"`
	Confidence           float64 `json:"confidence"`
}

// Emitter is a strictly ordered, cancellable event sink for one streaming
// request. The bounded channel implements the back-pressure rule of
// §4.6.4: if the consumer cannot keep up, Send returns false and the
// pipeline aborts with error{kind=consumer_slow}.
type Emitter struct {
	ch chan Event
}

// eventBufferSize is the "small bounded number of pending events"
// referenced by §4.6.4.
const eventBufferSize = 16

// NewEmitter builds an Emitter backed by a bounded channel.
func NewEmitter() *Emitter {
	return &Emitter{ch: make(chan Event, eventBufferSize)}
}

// Events returns the read side of the emitter for the HTTP facade to drain.
func (e *Emitter) Events() <-chan Event { return e.ch }

// Close closes the channel; call exactly once after the terminal event.
func (e *Emitter) Close() { close(e.ch) }

// Send attempts a non-blocking send. It returns false if the buffer is
// full and the consumer is not draining fast enough (the consumer_slow
// condition); the caller is responsible for turning that into a terminal
// error{kind=consumer_slow} frame via SendBlocking.
func (e *Emitter) Send(ev Event) bool {
	select {
	case e.ch <- ev:
		return true
	default:
		return false
	}
}

// SendBlocking sends ev, blocking until the consumer has room or ctx is
// done. It exists for the single guaranteed terminal frame that follows a
// back-pressure abort, where the buffer is known to be full and a plain
// Send would just fail again: a consumer that is merely slow (not dead)
// still drains enough to make room, while a consumer that has gone away
// is caught by ctx's own cancellation instead of blocking forever.
func (e *Emitter) SendBlocking(ctx context.Context, ev Event) bool {
	select {
	case e.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
