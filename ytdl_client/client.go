// Package ytdl_client wires the download-state engine together: the transport
// session, the registry with its warm-start cache, the identity store, the
// bootstrap sequencer and the progress channel consumer. User actions are
// methods on Client; each one holds the loading signal while it runs and turns
// failures into a single notification.
package ytdl_client

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/isseis/go-ytdl-client/app_state"
	"github.com/isseis/go-ytdl-client/download_registry"
	"github.com/isseis/go-ytdl-client/identity_store"
	"github.com/isseis/go-ytdl-client/local_storage"
	"github.com/isseis/go-ytdl-client/session_bootstrap"
	"github.com/isseis/go-ytdl-client/warm_cache"
	"github.com/isseis/go-ytdl-client/ytdl_api"
)

// IdentityStore persists the client identity.
type IdentityStore interface {
	Load() (identity_store.ClientID, error)
	Save(id identity_store.ClientID) error
	Clear() error
}

// Client is the controller of one client session.
type Client struct {
	api         ytdl_api.Client
	identity    IdentityStore
	registry    *download_registry.Registry
	state       *app_state.State
	fs          FileSystemOperations
	logger      Logger
	downloadDir string

	streamBase  string
	streamHTTP  *http.Client
	openChannel session_bootstrap.ChannelOpener

	mu        sync.Mutex
	candidate *ytdl_api.Preview
}

// ClientOption defines a function type to set options for Client.
type ClientOption func(*Client)

// WithLogger sets the logger for Client.
// If not set, a fallback logger printing to stderr is used.
func WithLogger(log Logger) ClientOption {
	return func(c *Client) {
		c.logger = log
	}
}

// WithAppState shares an existing loading signal and notification queue.
func WithAppState(state *app_state.State) ClientOption {
	return func(c *Client) {
		c.state = state
	}
}

// WithFileSystem replaces the file system used by Fetch.
func WithFileSystem(fs FileSystemOperations) ClientOption {
	return func(c *Client) {
		c.fs = fs
	}
}

// WithDownloadDir sets the default target directory of Fetch.
func WithDownloadDir(dir string) ClientOption {
	return func(c *Client) {
		c.downloadDir = dir
	}
}

// WithStreamEndpoint sets where the progress stream is opened. New derives it
// from the API session.
func WithStreamEndpoint(baseURL string, client *http.Client) ClientOption {
	return func(c *Client) {
		c.streamBase = baseURL
		c.streamHTTP = client
	}
}

// WithChannelOpener replaces progress_channel.Open.
func WithChannelOpener(open session_bootstrap.ChannelOpener) ClientOption {
	return func(c *Client) {
		c.openChannel = open
	}
}

// New builds a client from cfg: local storage in cfg.StateDir, an API session
// and a registry seeded from the warm-start cache.
func New(cfg *Config, opts ...ClientOption) (*Client, error) {
	c := newClient(opts...)

	storage, err := local_storage.New(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open state directory: %w", err)
	}
	cache := warm_cache.New(storage)
	warm, err := cache.Load()
	if err != nil {
		c.logger.Warn("Ignoring unreadable warm-start cache", "error", err)
		warm = nil
	}

	session, err := ytdl_api.NewSession(cfg.APIURL,
		ytdl_api.WithTimeout(cfg.HTTPTimeout),
		ytdl_api.WithDurationUnit(cfg.DurationUnit),
		ytdl_api.WithRetry(cfg.GetRetries, ytdl_api.DefaultRetryDelay),
	)
	if err != nil {
		return nil, err
	}

	c.api = session
	c.identity = identity_store.New(storage)
	c.registry = download_registry.New(warm,
		download_registry.WithSnapshotSaver(cache),
		download_registry.WithLogger(c.logger),
	)
	if c.downloadDir == "" {
		c.downloadDir = cfg.DownloadDir
	}
	if c.streamBase == "" {
		// The stream stays open indefinitely, so it shares the cookie jar
		// but not the request timeout.
		streamHTTP := *session.HTTPClient()
		streamHTTP.Timeout = 0
		c.streamBase = session.BaseURL()
		c.streamHTTP = &streamHTTP
	}
	c.logger.Debug("Client created", "api_url", session.BaseURL(), "state_dir", storage.Dir(), "warm_jobs", len(warm))
	return c, nil
}

// NewWithDependencies constructs a Client with injected dependencies.
// Intended for testing and advanced use.
func NewWithDependencies(api ytdl_api.Client, identity IdentityStore, registry *download_registry.Registry, opts ...ClientOption) *Client {
	c := newClient(opts...)
	c.api = api
	c.identity = identity
	c.registry = registry
	return c
}

func newClient(opts ...ClientOption) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = newFallbackLogger()
	}
	if c.state == nil {
		c.state = app_state.New()
	}
	if c.fs == nil {
		c.fs = &DefaultFileSystem{}
	}
	if c.downloadDir == "" {
		c.downloadDir = "."
	}
	return c
}

// API returns the transport client.
func (c *Client) API() ytdl_api.Client {
	return c.api
}

// Registry returns the download registry.
func (c *Client) Registry() *download_registry.Registry {
	return c.registry
}

// State returns the loading signal and notification queue.
func (c *Client) State() *app_state.State {
	return c.state
}

// GetLogger returns the logger instance.
func (c *Client) GetLogger() Logger {
	return c.logger
}

// ResetIdentity forgets the client identity locally. The next bootstrap asks
// the backend for a new one.
func (c *Client) ResetIdentity() error {
	if err := c.identity.Clear(); err != nil {
		return err
	}
	c.api.SetClientID("")
	c.logger.Info("Client identity cleared")
	return nil
}

// ServerVersion returns the backend version without touching the identity.
func (c *Client) ServerVersion(ctx context.Context) (*ytdl_api.VersionInfo, error) {
	if id, err := c.identity.Load(); err == nil && id != "" && c.api.ClientID() == "" {
		c.api.SetClientID(string(id))
	}
	return c.api.Version(ctx)
}

// fail logs err and queues its user message.
func (c *Client) fail(op string, err error) error {
	c.logger.Warn(op+" failed", "error", err)
	c.state.Notices.Error(ytdl_api.UserMessage(err))
	return err
}
