package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/brightledger/finance-analytics-core/internal/errs"
)

// writeJSON writes data as a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeErrorJSON writes the standard {kind, message} error body.
func writeErrorJSON(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{"kind": kind, "message": message})
}

// statusFor maps an error-kind to the HTTP status of §6.2. internal is the
// catch-all for anything that never went through the errs package.
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.BadRequest:
		return http.StatusBadRequest
	case errs.NotFound:
		return http.StatusNotFound
	case errs.CapabilityQuota:
		return http.StatusTooManyRequests
	case errs.Timeout:
		return http.StatusGatewayTimeout
	case errs.StoreUnavailable, errs.CapabilityUnavailable, errs.PersistConflict, errs.Cancelled:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeErr maps err through the error taxonomy and writes the resulting
// status and body. internal errors return an opaque message (§7).
func writeErr(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	message := err.Error()
	if kind == errs.Internal {
		message = "internal error"
	}
	writeErrorJSON(w, statusFor(kind), string(kind), message)
}
