package suggester

import (
	"context"
	"time"
)

// streamDeadline is the end-to-end budget for one streaming run (§4.6.4).
const streamDeadline = 60 * time.Second

// RunStream starts the core pipeline in a goroutine and returns an Emitter
// the HTTP facade drains to produce the SSE response (§4.6.4). The
// returned Emitter is closed exactly once, after the terminal event
// (complete or error) has been sent. A 60s deadline bounds the whole run;
// exceeding it emits error{kind=timeout} before closing.
func (e *Engine) RunStream(ctx context.Context, userID string, weekStart time.Time, dryRun bool) *Emitter {
	emitter := NewEmitter()

	go func() {
		defer emitter.Close()

		runCtx, cancel := context.WithTimeout(ctx, streamDeadline)
		defer cancel()

		aborted := false
		emit := func(ev Event) {
			if aborted {
				return
			}
			if emitter.Send(ev) {
				return
			}
			// Consumer isn't draining fast enough: stop the pipeline and
			// push the one terminal frame it's still owed, blocking
			// against the outer (un-cancelled) ctx rather than runCtx so
			// a merely-slow consumer still receives it once it catches
			// up.
			aborted = true
			cancel()
			emitter.SendBlocking(ctx, Event{
				Kind:      EventError,
				At:        time.Now().UTC(),
				ErrorKind: "consumer_slow",
				Message:   "client did not drain events fast enough",
			})
		}

		// Run emits its own terminal event (complete or error) via emit
		// before returning; nothing further to send here.
		_ = e.Run(runCtx, userID, weekStart, dryRun, emit)
	}()

	return emitter
}
