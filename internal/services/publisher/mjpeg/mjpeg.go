package mjpeg

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"sentinel-worker-go/internal/services/snapshot"
)

const boundary = "frame"

// DefaultKeepalive resends the current image when the device is quiet
const DefaultKeepalive = 2 * time.Second

// Stream serves a store as multipart/x-mixed-replace until the client goes
// away. Each store update becomes one part; a keepalive repeats the last
// image so proxies do not drop idle streams.
func Stream(w http.ResponseWriter, r *http.Request, store *snapshot.Store, keepalive time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}

	notify, cancel := store.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writePart := func(jpeg []byte) bool {
		if _, err := io.WriteString(w, "--"+boundary+"\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "Content-Type: image/jpeg\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(jpeg))); err != nil {
			return false
		}
		if _, err := w.Write(jpeg); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	var sent uint64
	send := func(force bool) bool {
		jpeg, version := store.ReadVersion()
		if len(jpeg) == 0 || (!force && version == sent) {
			return true
		}
		sent = version
		return writePart(jpeg)
	}

	if !send(true) {
		return
	}

	keepaliveTicker := time.NewTicker(keepalive)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
			if !send(false) {
				return
			}
		case <-keepaliveTicker.C:
			if !send(true) {
				return
			}
		}
	}
}
