package httpapi

import (
	"encoding/json"
	"net/http"
)

// writeSSE frames one event as `data: <json>\n\n` per §6.3. It returns
// false if the write failed (client disconnected), signalling the caller
// to stop draining the emitter.
func writeSSE(w http.ResponseWriter, ev interface{}) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return false
	}
	if _, err := w.Write(payload); err != nil {
		return false
	}
	_, err = w.Write([]byte("\n\n"))
	return err == nil
}
