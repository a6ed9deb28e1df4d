package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/yourusername/bsengine/pkg/game"
)

// sseKeepAlive is how often an idle event stream gets a comment line.
const sseKeepAlive = 15 * time.Second

// EventsSSE streams session events as Server-Sent Events.
// GET /api/sessions/{id}/events?buffer=16
//
// The stream opens with a "snapshot" event carrying the current view, then
// sends one event per change named after its type. It ends with "closed"
// when the session is deleted.
func (h *Handlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeSessionError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "STREAMING_UNSUPPORTED")
		return
	}
	// Streams outlive the server write timeout
	http.NewResponseController(w).SetWriteDeadline(time.Time{})

	events, cancel := s.Subscribe(parseIntParam(r.URL.Query().Get("buffer"), 16))
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSEEvent(w, "snapshot", "", s.View())
	flusher.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeSSEEvent(w, string(ev.Type), strconv.Itoa(ev.Seq), ev)
			flusher.Flush()
			if ev.Type == game.EventClosed {
				return
			}
		}
	}
}

// writeSSEEvent writes a Server-Sent Event to the response.
func writeSSEEvent(w http.ResponseWriter, event, id string, data any) {
	fmt.Fprintf(w, "event: %s\n", event)
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	if data != nil {
		jsonData, _ := json.Marshal(data)
		fmt.Fprintf(w, "data: %s\n", jsonData)
	}
	fmt.Fprintf(w, "\n")
}

// parseIntParam parses an integer from a string with a default value.
func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}
