package changefeed

import (
	"net/http"
	"time"
)

const defaultKeepalive = 15 * time.Second

var keepaliveFrame = []byte(": keepalive\n\n")

// SetKeepalive changes the comment-frame interval used by ServeHTTP to keep
// idle connections open through proxies. Call it before serving.
func (b *Broker) SetKeepalive(d time.Duration) {
	if d > 0 {
		b.keepalive = d
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := w.Write(keepaliveFrame); err != nil {
				return
			}
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			ticker.Reset(b.keepalive)
		}
		flusher.Flush()
	}
}
