//go:build !integration

package ytdl_client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeBackend is an httptest server speaking the download service API,
// including the progress stream. Responses are scripted per test.
type fakeBackend struct {
	server *httptest.Server

	mu        sync.Mutex
	uid       string
	downloads []map[string]any
	enqueued  []map[string]any // list returned by PUT download
	deletes   map[string]string
	preview   map[string]any
	files     map[string]string
	requests  []string

	// events are sent on the stream after the connection is established,
	// followed by an end event.
	events []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		uid:     "backend-uid",
		deletes: map[string]string{},
		files:   map[string]string{},
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) apiURL() string {
	return b.server.URL + "/api/"
}

func (b *fakeBackend) config(t *testing.T) *Config {
	t.Helper()
	return &Config{
		APIURL:       b.apiURL(),
		StateDir:     t.TempDir(),
		DurationUnit: "seconds",
		HTTPTimeout:  5 * time.Second,
		GetRetries:   0,
		DownloadDir:  t.TempDir(),
	}
}

func (b *fakeBackend) requestLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.requests = append(b.requests, r.Method+" "+r.URL.Path)
	b.mu.Unlock()

	q := r.URL.Query()
	if r.URL.Path != "/api/version" && r.URL.Path != "/api/preview" && q.Get("uid") != b.uid {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"query", "uid"}, "msg": "field required"}},
		})
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/version":
		resp := map[string]any{"apiVersion": "1.2.0", "youtubeDlVersion": "2024.08.06", "mediaFormats": []string{"mp4", "mp3", "wav"}}
		if q.Get("uid") == "" {
			resp["uid"] = b.uid
		}
		writeJSON(w, http.StatusOK, resp)
	case r.Method == http.MethodGet && r.URL.Path == "/api/downloads":
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"downloads": b.downloads})
	case r.Method == http.MethodGet && r.URL.Path == "/api/preview":
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, b.preview)
	case r.Method == http.MethodPut && r.URL.Path == "/api/download":
		_, _ = io.Copy(io.Discard, r.Body)
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]any{"downloads": b.enqueued})
	case r.Method == http.MethodDelete && r.URL.Path == "/api/delete":
		id := q.Get("mediaId")
		b.mu.Lock()
		status, ok := b.deletes[id]
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Download not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mediaId": id, "status": status})
	case r.Method == http.MethodGet && r.URL.Path == "/api/download":
		id := q.Get("mediaId")
		b.mu.Lock()
		content, ok := b.files[id]
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "File not found"})
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Disposition", `attachment; filename*=utf-8''`+id+`%20track.mp3`)
		w.Header().Set("Content-Length", fmt.Sprint(len(content)))
		_, _ = io.WriteString(w, content)
	case r.Method == http.MethodGet && r.URL.Path == "/api/download/stream":
		b.stream(w)
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) stream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)
	flusher.Flush()

	b.mu.Lock()
	events := append([]string(nil), b.events...)
	b.mu.Unlock()
	for _, payload := range events {
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
		flusher.Flush()
	}
	fmt.Fprint(w, "event: end\ndata: \n\n")
	flusher.Flush()
}
