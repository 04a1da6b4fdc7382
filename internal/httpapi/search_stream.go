package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/airweave-core/airweave-core/internal/events"
	"github.com/airweave-core/airweave-core/internal/search"
)

// streamSearch runs pipeline against st in the background while relaying
// every event the Emitter produces as an SSE "data:" line, the same
// Content-Type/no-buffering header set and flush-per-chunk shape as the
// teacher's own writeSSEChunk, then emits one final event carrying the
// completed Response (or an error event) before closing the stream.
func (s *Server) streamSearch(w http.ResponseWriter, r *http.Request, pipeline *search.Pipeline, st *search.State, emitter *events.Emitter) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpResponse(w, "streaming not supported by this server", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	resultCh := make(chan searchOutcome, 1)
	go func() {
		resp, err := pipeline.Run(r.Context(), st)
		resultCh <- searchOutcome{resp: resp, err: err}
	}()

	evCh := emitter.Events()
	for {
		select {
		case ev, ok := <-evCh:
			if !ok {
				evCh = nil
				continue
			}
			writeSSEEvent(w, flusher, ev)
		case outcome := <-resultCh:
			// Drain any events still buffered ahead of the final result.
			for drained := true; drained; {
				select {
				case ev, ok := <-evCh:
					if ok {
						writeSSEEvent(w, flusher, ev)
					} else {
						drained = false
					}
				default:
					drained = false
				}
			}
			writeSSEResult(w, flusher, outcome)
			return
		case <-r.Context().Done():
			return
		}
	}
}

type searchOutcome struct {
	resp *search.Response
	err  error
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, ev events.Event) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
	flusher.Flush()
}

func writeSSEResult(w http.ResponseWriter, flusher http.Flusher, outcome searchOutcome) {
	if outcome.err != nil {
		data, _ := json.Marshal(map[string]string{"message": outcome.err.Error()})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	} else {
		data, _ := json.Marshal(outcome.resp)
		fmt.Fprintf(w, "event: result\ndata: %s\n\n", data)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
