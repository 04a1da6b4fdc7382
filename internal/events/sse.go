package events

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WriteSSE drains an Emitter's event channel to w as Server-Sent Events,
// one "data: <json>\n\n" line per event, flushing after each write so
// clients see progress as it happens rather than buffered in bulk. It
// returns once the channel is closed (the request finished) or the
// request context is cancelled, whichever comes first.
//
// The caller is responsible for setting the response status before the
// first write and for closing the Emitter once the producing operations
// are done.
func WriteSSE(w http.ResponseWriter, e *Emitter) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("events: response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for evt := range e.Events() {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
	return nil
}
