package httpapi

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// NewRouter wires every path of §6.2 onto an http.ServeMux, then wraps it
// in recovery/logging/CORS middleware, in the teacher's
// cmd/api/main.go ordering (recovery outermost, so a panic in logging
// itself is still caught).
func NewRouter(h *Handlers, log zerolog.Logger, corsAllowOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		requireMethod(w, r, http.MethodGet, h.Health)
	})

	mux.HandleFunc("/api/predict", func(w http.ResponseWriter, r *http.Request) {
		requireMethod(w, r, http.MethodGet, h.Predict)
	})

	mux.HandleFunc("/api/smart-tips", func(w http.ResponseWriter, r *http.Request) {
		requireMethod(w, r, http.MethodGet, h.SmartTips)
	})

	mux.HandleFunc("/api/better-deals", func(w http.ResponseWriter, r *http.Request) {
		requireMethod(w, r, http.MethodGet, h.BetterDeals)
	})

	mux.HandleFunc("/api/user/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeErrorJSON(w, http.StatusMethodNotAllowed, "bad_request", "method not allowed")
			return
		}
		routeUserPath(h, w, r)
	})

	mux.HandleFunc("/api/item/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeErrorJSON(w, http.StatusMethodNotAllowed, "bad_request", "method not allowed")
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/api/item/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] != "needwant" {
			writeErrorJSON(w, http.StatusNotFound, "not_found", "unknown route")
			return
		}
		h.Needwant(w, r, parts[0])
	})

	handler := Recovery(log)(Logger(log)(CORS(corsAllowOrigins)(mux)))
	return handler
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string, fn http.HandlerFunc) {
	if r.Method != method {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "bad_request", "method not allowed")
		return
	}
	fn(w, r)
}

// routeUserPath dispatches the /api/user/{user_id}/... family, extracting
// user_id and the trailing sub-path by hand (the teacher's
// strings.TrimPrefix idiom rather than a routing library).
func routeUserPath(h *Handlers, w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/user/")
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" {
		writeErrorJSON(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "transactions":
		h.Transactions(w, r, userID)
	case len(parts) == 2 && parts[1] == "weekly_alternatives":
		h.WeeklyAlternatives(w, r, userID)
	case len(parts) == 3 && parts[1] == "weekly_alternatives" && parts[2] == "history":
		h.WeeklyAlternativesHistory(w, r, userID)
	case len(parts) == 3 && parts[1] == "weekly_alternatives" && parts[2] == "stream":
		h.WeeklyAlternativesStream(w, r, userID)
	default:
		writeErrorJSON(w, http.StatusNotFound, "not_found", "unknown route")
	}
}
