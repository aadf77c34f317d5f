// Package progress_channel consumes the backend's server-sent event stream of
// download status changes. A Channel is one connection: it delivers updates in
// arrival order until the server ends the stream, the connection fails or the
// channel is closed. It never reconnects.
package progress_channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	sse "github.com/tmaxmax/go-sse"

	"github.com/isseis/go-ytdl-client/logger"
	"github.com/isseis/go-ytdl-client/ytdl_api"
)

const (
	// DefaultPath is the stream endpoint relative to the API base URL.
	DefaultPath = "download/stream"

	eventMessage = "message"
	eventEnd     = "end"

	updateBuffer = 64
	maxEventSize = 256 << 10
)

// ErrNoIdentity is returned by Open when neither a client identity nor the
// API version is known, i.e. no session has been established with the backend.
var ErrNoIdentity = errors.New("progress channel requires an established session")

// Logger is the subset of logger.Logger used by the channel.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Config describes the stream to open.
type Config struct {
	BaseURL  string
	ClientID string // sent as uid; empty on cookie-scoped backends
	// APIVersion is set once the version handshake succeeded. Together with
	// the shared cookie jar it scopes the stream when there is no ClientID.
	APIVersion string
	Path       string       // DefaultPath when empty
	HTTPClient *http.Client // must not have a Timeout; http.DefaultClient when nil
	Logger     Logger
}

// StatusUpdate is one validated status change. Nil fields were absent from the message.
type StatusUpdate struct {
	MediaID       ytdl_api.MediaID
	Status        ytdl_api.DownloadStatus
	Progress      *int
	Filesize      *int64
	FilesizeHuman *string
}

// Channel is an open progress stream.
type Channel struct {
	updates   chan StatusUpdate
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
	logger    Logger

	mu  sync.Mutex
	err error
}

// Open connects to the stream. Connection failures are returned as
// ytdl_api.NetworkError or *ytdl_api.ServerError.
func Open(ctx context.Context, cfg Config) (*Channel, error) {
	if cfg.ClientID == "" && cfg.APIVersion == "" {
		return nil, ErrNoIdentity
	}
	streamURL, err := buildStreamURL(cfg)
	if err != nil {
		return nil, err
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		cancel()
		return nil, ytdl_api.NetworkError(err.Error())
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set(ytdl_api.RequestIDHeader, uuid.NewString())

	res, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, ytdl_api.NetworkError(err.Error())
	}
	if res.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		res.Body.Close()
		cancel()
		return nil, &ytdl_api.ServerError{Status: res.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}

	c := &Channel{
		updates: make(chan StatusUpdate, updateBuffer),
		done:    make(chan struct{}),
		cancel:  cancel,
		logger:  log,
	}
	log.Debug("Progress channel opened", "url", streamURL)
	go c.run(ctx, res.Body)
	return c, nil
}

func buildStreamURL(cfg Config) (string, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return "", ytdl_api.InvalidUrlError(cfg.BaseURL)
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	u := base.JoinPath(path)
	if cfg.ClientID != "" {
		q := u.Query()
		q.Set("uid", cfg.ClientID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Updates returns the stream of status changes. It is closed when the
// connection ends for any reason.
func (c *Channel) Updates() <-chan StatusUpdate {
	return c.updates
}

// Done is closed once the connection has ended and Updates is closed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the transport error that ended the stream, if any. It is nil
// while the stream is open, after an "end" event, and after Close.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close ends the stream and waits for the reader goroutine to exit.
// It is safe to call more than once.
func (c *Channel) Close() {
	c.closeOnce.Do(c.cancel)
	<-c.done
}

func (c *Channel) run(ctx context.Context, body io.ReadCloser) {
	defer close(c.done)
	defer close(c.updates)
	defer body.Close()
	defer c.cancel()

	for ev, err := range sse.Read(body, &sse.ReadConfig{MaxEventSize: maxEventSize}) {
		if err != nil {
			if ctx.Err() == nil {
				c.setErr(ytdl_api.NetworkError(err.Error()))
				c.logger.Warn("Progress channel failed", "error", err)
			} else {
				c.logger.Debug("Progress channel closed")
			}
			return
		}

		switch ev.Type {
		case eventMessage, "":
			update, err := ParseStatusUpdate([]byte(ev.Data))
			if err != nil {
				c.logger.Warn("Dropping malformed progress message", "error", err, "data", ev.Data)
				continue
			}
			select {
			case c.updates <- update:
			case <-ctx.Done():
				return
			}
		case eventEnd:
			c.logger.Debug("Progress channel ended by server")
			return
		default:
			c.logger.Debug("Ignoring progress event", "event", ev.Type, "id", ev.LastEventID)
		}
	}
	c.logger.Debug("Progress channel closed")
}

func (c *Channel) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// jsonStatusUpdate is the payload of a "message" event, e.g.
//
//	{"mediaId": "b8d3f2a1c4e5", "status": "downloading", "progress": 42}
type jsonStatusUpdate struct {
	MediaID       string   `json:"mediaId"`
	Status        string   `json:"status"`
	Progress      *float64 `json:"progress"`
	Filesize      *int64   `json:"filesize"`
	FilesizeHuman *string  `json:"filesizeHr"`
}

func (j *jsonStatusUpdate) validate() error {
	if j.MediaID == "" {
		return fmt.Errorf("missing mediaId")
	}
	if _, err := ytdl_api.ParseDownloadStatus(j.Status); err != nil {
		return err
	}
	if j.Progress != nil && (math.IsNaN(*j.Progress) || *j.Progress < 0 || *j.Progress > 100) {
		return fmt.Errorf("progress out of range: %v", *j.Progress)
	}
	if j.Filesize != nil && *j.Filesize < 0 {
		return fmt.Errorf("negative filesize: %d", *j.Filesize)
	}
	return nil
}

func (j *jsonStatusUpdate) toStatusUpdate() StatusUpdate {
	u := StatusUpdate{
		MediaID:       ytdl_api.MediaID(j.MediaID),
		Status:        ytdl_api.DownloadStatus(j.Status),
		Filesize:      j.Filesize,
		FilesizeHuman: j.FilesizeHuman,
	}
	if j.Progress != nil {
		p := int(math.Round(*j.Progress))
		u.Progress = &p
	}
	return u
}

// ParseStatusUpdate decodes and validates a "message" payload.
func ParseStatusUpdate(data []byte) (StatusUpdate, error) {
	var j jsonStatusUpdate
	if err := json.Unmarshal(data, &j); err != nil {
		return StatusUpdate{}, fmt.Errorf("invalid status update: %w", err)
	}
	if err := j.validate(); err != nil {
		return StatusUpdate{}, fmt.Errorf("invalid status update: %w", err)
	}
	return j.toStatusUpdate(), nil
}
