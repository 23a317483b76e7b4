package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pressroom-io/pressroom/internal/domain/dispatch"
)

// resultStreamBuffer bounds the per-subscriber queue. A slow consumer
// loses events rather than blocking dispatch.
const resultStreamBuffer = 16

// handleResultStream streams action results as server-sent events.
// The UI uses this to surface results of agent-dispatched actions.
func (h *Handler) handleResultStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if h.metrics != nil {
		h.metrics.ResultStreams.Inc()
		defer h.metrics.ResultStreams.Dec()
	}

	events := make(chan dispatch.Result, resultStreamBuffer)
	unsubscribe := h.dispatcher.SubscribeResults(func(result dispatch.Result) {
		select {
		case events <- result:
		default:
			// Drop for this subscriber; results are also returned
			// synchronously on the dispatch call itself.
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case result := <-events:
			payload, err := json.Marshal(result)
			if err != nil {
				h.logger.Error("failed to marshal result event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: result\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
