// Package session_bootstrap runs the startup sequence of a client session:
// resolve the identity, fetch the backend version, load the job list and open
// the progress stream. No step is fatal; failures are reported as
// notifications or log entries and the session continues degraded.
package session_bootstrap

import (
	"context"
	"errors"
	"net/http"

	"github.com/isseis/go-ytdl-client/app_state"
	"github.com/isseis/go-ytdl-client/download_registry"
	"github.com/isseis/go-ytdl-client/identity_store"
	"github.com/isseis/go-ytdl-client/logger"
	"github.com/isseis/go-ytdl-client/progress_channel"
	"github.com/isseis/go-ytdl-client/ytdl_api"
)

// IdentityStore persists the client identity.
type IdentityStore interface {
	Load() (identity_store.ClientID, error)
	Save(id identity_store.ClientID) error
}

// Registry receives the initial job list.
type Registry interface {
	ReplaceAll(jobs []download_registry.DownloadJob) download_registry.State
}

// ChannelOpener opens a progress stream; progress_channel.Open in production.
type ChannelOpener func(ctx context.Context, cfg progress_channel.Config) (*progress_channel.Channel, error)

// Logger is the subset of logger.Logger used by the sequencer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Result describes what the bootstrap achieved.
type Result struct {
	APIVersion       string                 // empty when the version request failed
	YoutubeDLVersion string                 // empty when unknown
	MediaFormats     []ytdl_api.MediaFormat // formats the backend can produce
	ClientID         identity_store.ClientID
	JobsLoaded       bool                       // the registry holds live data
	Channel          *progress_channel.Channel // nil when the stream could not be opened
}

// Sequencer runs the bootstrap steps in order.
type Sequencer struct {
	api         ytdl_api.Client
	identity    IdentityStore
	registry    Registry
	state       *app_state.State
	openChannel ChannelOpener
	streamBase  string
	streamHTTP  *http.Client
	logger      Logger
}

// SequencerOption configures a Sequencer.
type SequencerOption func(*Sequencer)

// WithStreamEndpoint sets the base URL and HTTP client used for the progress
// stream. Without it the stream is not opened.
func WithStreamEndpoint(baseURL string, client *http.Client) SequencerOption {
	return func(s *Sequencer) {
		s.streamBase = baseURL
		s.streamHTTP = client
	}
}

// WithChannelOpener replaces progress_channel.Open.
func WithChannelOpener(open ChannelOpener) SequencerOption {
	return func(s *Sequencer) {
		s.openChannel = open
	}
}

// WithLogger sets the logger for the sequencer.
func WithLogger(l Logger) SequencerOption {
	return func(s *Sequencer) {
		s.logger = l
	}
}

// New creates a Sequencer.
func New(api ytdl_api.Client, identity IdentityStore, registry Registry, state *app_state.State, options ...SequencerOption) *Sequencer {
	s := &Sequencer{
		api:         api,
		identity:    identity,
		registry:    registry,
		state:       state,
		openChannel: progress_channel.Open,
		logger:      logger.NewDiscardLogger(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Run executes the bootstrap. It never fails; see Result for what succeeded.
func (s *Sequencer) Run(ctx context.Context) *Result {
	result := &Result{}

	// Step 1: identity from local storage, possibly empty
	id, err := s.identity.Load()
	if err != nil {
		s.logger.Warn("Failed to load client identity", "error", err)
	}
	if id != "" {
		s.api.SetClientID(string(id))
	}

	// Steps 2 and 3 are covered by the loading signal, whatever their outcome
	release := s.state.Loading.Hold()
	s.fetchVersion(ctx, result)
	s.fetchDownloads(ctx, result)
	release()

	result.ClientID = identity_store.ClientID(s.api.ClientID())

	// Step 4: fire and forget
	result.Channel = s.openStream(ctx, result)
	return result
}

func (s *Sequencer) fetchVersion(ctx context.Context, result *Result) {
	info, err := s.api.Version(ctx)
	if err != nil {
		s.logger.Warn("Failed to fetch API version", "error", err)
		s.state.Notices.Error(ytdl_api.UserMessage(err))
		return
	}
	result.APIVersion = info.APIVersion
	result.YoutubeDLVersion = info.YoutubeDLVersion
	result.MediaFormats = info.MediaFormats

	if info.ClientID == "" || info.ClientID == s.api.ClientID() {
		return
	}
	s.logger.Info("Client identity issued", "uid", info.ClientID)
	s.api.SetClientID(info.ClientID)
	if err := s.identity.Save(identity_store.ClientID(info.ClientID)); err != nil {
		s.logger.Warn("Failed to persist client identity", "error", err)
	}
}

// fetchDownloads runs whether or not an identity is known: cookie-scoped
// backends never issue a uid.
func (s *Sequencer) fetchDownloads(ctx context.Context, result *Result) {
	jobs, err := s.api.Downloads(ctx)
	if err != nil {
		s.logger.Warn("Failed to fetch downloads", "error", err)
		s.state.Notices.Error(ytdl_api.UserMessage(err))
		return
	}
	s.registry.ReplaceAll(jobs)
	result.JobsLoaded = true
	s.logger.Debug("Downloads loaded", "count", len(jobs))
}

func (s *Sequencer) openStream(ctx context.Context, result *Result) *progress_channel.Channel {
	if s.streamBase == "" {
		s.logger.Debug("Progress stream not configured")
		return nil
	}
	ch, err := s.openChannel(ctx, progress_channel.Config{
		BaseURL:    s.streamBase,
		ClientID:   string(result.ClientID),
		APIVersion: result.APIVersion,
		HTTPClient: s.streamHTTP,
		Logger:     s.logger,
	})
	if err != nil {
		if errors.Is(err, progress_channel.ErrNoIdentity) {
			s.logger.Info("Progress stream not opened: neither identity nor API version known")
		} else {
			s.logger.Warn("Failed to open progress stream", "error", err)
		}
		return nil
	}
	return ch
}
