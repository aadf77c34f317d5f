//go:build !integration
// +build !integration

package ytdl_api

import (
	_ "embed"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

//go:embed data/version_response.json
var cannedResponseVersion []byte

//go:embed data/downloads_response.json
var cannedResponseDownloads []byte

//go:embed data/preview_response.json
var cannedResponsePreview []byte

//go:embed data/delete_response.json
var cannedResponseDelete []byte

//go:embed data/validation_error_response.json
var cannedResponseValidationError []byte

const mockFileContent = "ID3 fake audio payload"

// mockBackend is an in-process ytdl backend serving canned responses.
type mockBackend struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []*http.Request
	lastBody []byte
}

// newMockBackend starts a mock backend rooted at /api/ and registers its shutdown.
func newMockBackend(t *testing.T) *mockBackend {
	t.Helper()
	mb := &mockBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", mb.handle)
	mb.server = httptest.NewServer(mux)
	t.Cleanup(mb.server.Close)
	return mb
}

func (mb *mockBackend) baseURL() string {
	return mb.server.URL + "/api/"
}

func (mb *mockBackend) newSession(t *testing.T, options ...SessionOption) *Session {
	t.Helper()
	s, err := NewSession(mb.baseURL(), options...)
	require.NoError(t, err)
	return s
}

func (mb *mockBackend) lastRequest() *http.Request {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.requests) == 0 {
		return nil
	}
	return mb.requests[len(mb.requests)-1]
}

// handle dispatches on the endpoint path; requests without a uid are rejected
// for session scoped endpoints, matching the real backend.
func (mb *mockBackend) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	mb.mu.Lock()
	mb.requests = append(mb.requests, r.Clone(r.Context()))
	mb.lastBody = body
	mb.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	uid := r.URL.Query().Get("uid")

	switch {
	case r.URL.Path == "/api/version" && r.Method == http.MethodGet:
		w.Write(cannedResponseVersion)
	case r.URL.Path == "/api/preview" && r.Method == http.MethodGet:
		if r.URL.Query().Get("url") == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write(cannedResponseValidationError)
			return
		}
		w.Write(cannedResponsePreview)
	case uid == "":
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": [{"loc": ["query", "uid"], "msg": "field required", "type": "value_error.missing"}]}`))
	case r.URL.Path == "/api/downloads" && r.Method == http.MethodGet:
		w.Write(cannedResponseDownloads)
	case r.URL.Path == "/api/download" && r.Method == http.MethodPut:
		w.WriteHeader(http.StatusCreated)
		w.Write(cannedResponseDownloads)
	case r.URL.Path == "/api/delete" && r.Method == http.MethodDelete:
		if r.URL.Query().Get("mediaId") != "b8d3f2a1c4e5" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail": "Download not found"}`))
			return
		}
		w.Write(cannedResponseDelete)
	case r.URL.Path == "/api/retry" && r.Method == http.MethodPut:
		w.Write([]byte(`{"mediaId": "` + r.URL.Query().Get("mediaId") + `", "status": "started"}`))
	case r.URL.Path == "/api/download" && r.Method == http.MethodGet:
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Disposition", `attachment; filename="fallback.mp3"; filename*=utf-8''Adam%20Knight%20-%20I%27ve%20Got%20The%20Gold.mp3`)
		w.Write([]byte(mockFileContent))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Not Found"}`))
	}
}
