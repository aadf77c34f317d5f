package progress_channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isseis/go-ytdl-client/ytdl_api"
)

// sseServer serves a scripted event stream on /api/download/stream.
type sseServer struct {
	server *httptest.Server
	// events are written in order and flushed one by one
	events []string
	// hold keeps the connection open after the last event until the client goes away
	hold bool

	mu       sync.Mutex
	lastUID  string
	rawQuery string
	accepted string
}

func newSSEServer(t *testing.T, hold bool, events ...string) *sseServer {
	t.Helper()
	s := &sseServer{events: events, hold: hold}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *sseServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/download/stream" {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	s.lastUID = r.URL.Query().Get("uid")
	s.rawQuery = r.URL.RawQuery
	s.accepted = r.Header.Get("Accept")
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)
	flusher.Flush()
	for _, ev := range s.events {
		fmt.Fprint(w, ev)
		flusher.Flush()
	}
	if s.hold {
		<-r.Context().Done()
	}
}

func (s *sseServer) config() Config {
	return Config{BaseURL: s.server.URL + "/api/", ClientID: "uid-1", HTTPClient: s.server.Client()}
}

func message(payload string) string {
	return "event: message\ndata: " + payload + "\n\n"
}

func collect(t *testing.T, c *Channel) []StatusUpdate {
	t.Helper()
	var got []StatusUpdate
	timeout := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-c.Updates():
			if !ok {
				return got
			}
			got = append(got, u)
		case <-timeout:
			t.Fatal("timed out waiting for the channel to close")
			return got
		}
	}
}

func intPtr(v int) *int { return &v }

func TestOpenRequiresIdentityOrVersion(t *testing.T) {
	_, err := Open(context.Background(), Config{BaseURL: "http://localhost"})
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestOpenWithoutUIDOnceVersionKnown(t *testing.T) {
	srv := newSSEServer(t, false, message(`{"mediaId": "m1", "status": "started"}`))
	cfg := srv.config()
	cfg.ClientID = ""
	cfg.APIVersion = "1.0.0"

	c, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	got := collect(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, ytdl_api.MediaID("m1"), got[0].MediaID)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Empty(t, srv.rawQuery, "no empty uid parameter is sent")
}

func TestOpenInvalidURL(t *testing.T) {
	_, err := Open(context.Background(), Config{BaseURL: "::", ClientID: "u"})
	assert.IsType(t, ytdl_api.InvalidUrlError(""), err)
}

func TestStreamDeliversInOrderUntilEnd(t *testing.T) {
	srv := newSSEServer(t, true,
		": connected\n\n",
		message(`{"mediaId": "m2", "status": "downloading", "progress": 10}`),
		message(`{"mediaId": "m2", "status": "downloading", "progress": 90}`),
		message(`{"mediaId": "m2", "status": "downloading", "progress": 40}`),
		message(`{"mediaId": "m2", "status": "finished", "progress": 100, "filesize": 2048, "filesizeHr": "2.00 KB"}`),
		"event: end\ndata: \n\n",
		message(`{"mediaId": "late", "status": "started"}`),
	)

	c, err := Open(context.Background(), srv.config())
	require.NoError(t, err)
	defer c.Close()

	got := collect(t, c)
	require.Len(t, got, 4, "nothing after the end event is delivered")
	assert.Equal(t, []int{10, 90, 40, 100}, []int{*got[0].Progress, *got[1].Progress, *got[2].Progress, *got[3].Progress})
	assert.Equal(t, ytdl_api.StatusFinished, got[3].Status)
	assert.Equal(t, int64(2048), *got[3].Filesize)
	assert.Equal(t, "2.00 KB", *got[3].FilesizeHuman)
	assert.NoError(t, c.Err())

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "uid-1", srv.lastUID)
	assert.Equal(t, "text/event-stream", srv.accepted)
}

func TestStreamDropsMalformedMessages(t *testing.T) {
	srv := newSSEServer(t, false,
		message(`not json`),
		message(`{"status": "downloading"}`),
		message(`{"mediaId": "m1", "status": "paused"}`),
		message(`{"mediaId": "m1", "status": "downloading", "progress": 101}`),
		message(`{"mediaId": "m1", "status": "downloading", "progress": -1}`),
		"event: heartbeat\ndata: {}\n\n",
		message(`{"mediaId": "m1", "status": "converting", "progress": 5}`),
	)

	c, err := Open(context.Background(), srv.config())
	require.NoError(t, err)
	defer c.Close()

	got := collect(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, StatusUpdate{MediaID: "m1", Status: ytdl_api.StatusConverting, Progress: intPtr(5)}, got[0])
	assert.NoError(t, c.Err(), "EOF is a normal end of stream")
}

func TestStreamFraming(t *testing.T) {
	tests := []struct {
		name   string
		events []string
		want   []ytdl_api.MediaID
	}{
		{
			name:   "comments and keepalives are skipped",
			events: []string{": keepalive\n\n", message(`{"mediaId": "m1", "status": "started"}`), ":\n\n"},
			want:   []ytdl_api.MediaID{"m1"},
		},
		{
			name:   "data lines are joined",
			events: []string{"event: message\ndata: {\"mediaId\": \"m1\",\ndata: \"status\": \"started\"}\n\n"},
			want:   []ytdl_api.MediaID{"m1"},
		},
		{
			name:   "crlf line endings",
			events: []string{"event: message\r\ndata: {\"mediaId\": \"m1\", \"status\": \"started\"}\r\n\r\n"},
			want:   []ytdl_api.MediaID{"m1"},
		},
		{
			name:   "unnamed events are messages",
			events: []string{"data: {\"mediaId\": \"m1\", \"status\": \"started\"}\n\n"},
			want:   []ytdl_api.MediaID{"m1"},
		},
		{
			name: "unknown events are ignored",
			events: []string{
				"event: ping\ndata: {}\n\n",
				"id: 7\nevent: message\ndata: {\"mediaId\": \"m2\", \"status\": \"started\"}\n\n",
			},
			want: []ytdl_api.MediaID{"m2"},
		},
		{
			name:   "events split across writes",
			events: []string{"event: mess", "age\ndata: {\"mediaId\": ", "\"m3\", \"status\": \"started\"}\n", "\n"},
			want:   []ytdl_api.MediaID{"m3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSSEServer(t, false, tt.events...)
			c, err := Open(context.Background(), srv.config())
			require.NoError(t, err)
			defer c.Close()

			var ids []ytdl_api.MediaID
			for _, u := range collect(t, c) {
				ids = append(ids, u.MediaID)
			}
			assert.Equal(t, tt.want, ids)
			assert.NoError(t, c.Err())
		})
	}
}

func TestCloseStopsStream(t *testing.T) {
	srv := newSSEServer(t, true, message(`{"mediaId": "m1", "status": "started"}`))

	c, err := Open(context.Background(), srv.config())
	require.NoError(t, err)

	first := <-c.Updates()
	assert.Equal(t, ytdl_api.MediaID("m1"), first.MediaID)
	assert.Nil(t, first.Progress)

	c.Close()
	c.Close()
	_, ok := <-c.Updates()
	assert.False(t, ok, "updates are closed after Close")
	assert.NoError(t, c.Err())
	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestContextCancelStopsStream(t *testing.T) {
	srv := newSSEServer(t, true)
	ctx, cancel := context.WithCancel(context.Background())

	c, err := Open(ctx, srv.config())
	require.NoError(t, err)
	cancel()

	assert.Empty(t, collect(t, c))
	assert.NoError(t, c.Err())
}

func TestOpenServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stream unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Open(context.Background(), Config{BaseURL: srv.URL, ClientID: "u"})
	var serverErr *ytdl_api.ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, http.StatusServiceUnavailable, serverErr.Status)
	assert.Equal(t, "stream unavailable", serverErr.Detail)
}

func TestOpenNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Open(context.Background(), Config{BaseURL: url, ClientID: "u"})
	assert.IsType(t, ytdl_api.NetworkError(""), err)
}

func TestParseStatusUpdate(t *testing.T) {
	u, err := ParseStatusUpdate([]byte(`{"mediaId": "m", "status": "downloading", "progress": 42.6}`))
	require.NoError(t, err)
	assert.Equal(t, 43, *u.Progress)
	assert.Nil(t, u.Filesize)
	assert.Nil(t, u.FilesizeHuman)

	_, err = ParseStatusUpdate([]byte(`{"mediaId": "m", "status": "downloading", "filesize": -5}`))
	assert.Error(t, err)
}
