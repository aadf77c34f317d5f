package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// Logger is the interface for application-wide logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	FlushWebhook() error
	// Close releases the log file opened for Config.File. Caller supplied
	// outputs are left open.
	Close() error
}

// hybridLogger outputs JSON lines in real-time and buffers records for the webhook.
type hybridLogger struct {
	handler       *slog.JSONHandler
	webhookBuffer []slog.Record
	mu            sync.Mutex
	minLevel      Level
	webhookURL    string
	appName       string
	env           string
	httpClient    *http.Client
	file          io.Closer // set when the logger opened Config.File itself
}

// NewHybridLogger creates a new hybrid logger.
// Output goes to cfg.Output, then cfg.File (appended), then stdout.
func NewHybridLogger(cfg Config) Logger {
	output := cfg.Output
	var file io.Closer
	if output == nil && cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open log file %s, logging to stderr: %v\n", cfg.File, err)
			output = os.Stderr
		} else {
			output, file = f, f
		}
	}
	if output == nil {
		output = os.Stdout
	}
	return &hybridLogger{
		handler:    slog.NewJSONHandler(output, &slog.HandlerOptions{Level: cfg.Level.slog()}),
		minLevel:   cfg.Level,
		webhookURL: cfg.WebhookURL,
		appName:    cfg.AppName,
		env:        cfg.Environment,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		file:       file,
	}
}

// NewDiscardLogger returns a logger that drops everything. Useful for tests.
func NewDiscardLogger() Logger {
	return NewHybridLogger(Config{Level: levelOff, Output: io.Discard})
}

// webhookRecord is the JSON shape of one buffered log record.
type webhookRecord struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

type webhookPayload struct {
	App         string          `json:"app"`
	Environment string          `json:"env"`
	Logs        []webhookRecord `json:"logs"`
}

// sendToWebhook posts the buffered records as a single JSON document.
func sendToWebhook(client *http.Client, webhookURL, appName, env string, logs []slog.Record) error {
	payload := webhookPayload{App: appName, Environment: env, Logs: make([]webhookRecord, 0, len(logs))}
	for _, rec := range logs {
		wr := webhookRecord{
			Time:    rec.Time.Format(time.RFC3339Nano),
			Level:   rec.Level.String(),
			Message: rec.Message,
		}
		if rec.NumAttrs() > 0 {
			wr.Attrs = make(map[string]any, rec.NumAttrs())
			rec.Attrs(func(a slog.Attr) bool {
				v := a.Value.Resolve().Any()
				if err, ok := v.(error); ok {
					v = err.Error()
				}
				wr.Attrs[a.Key] = v
				return true
			})
		}
		payload.Logs = append(payload.Logs, wr)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to send logs to webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

func (h *hybridLogger) log(level slog.Level, msg string, args ...interface{}) {
	if level < h.minLevel.slog() {
		return
	}
	rec := slog.NewRecord(time.Now(), level, msg, 0)
	rec.Add(args...)
	_ = h.handler.Handle(context.Background(), rec)
	if h.webhookURL != "" {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.webhookBuffer = append(h.webhookBuffer, rec)
	}
}

func (h *hybridLogger) Debug(msg string, args ...interface{}) { h.log(slog.LevelDebug, msg, args...) }
func (h *hybridLogger) Info(msg string, args ...interface{})  { h.log(slog.LevelInfo, msg, args...) }
func (h *hybridLogger) Warn(msg string, args ...interface{})  { h.log(slog.LevelWarn, msg, args...) }
func (h *hybridLogger) Error(msg string, args ...interface{}) { h.log(slog.LevelError, msg, args...) }

func (h *hybridLogger) FlushWebhook() error {
	if h.webhookURL == "" {
		return nil
	}
	h.mu.Lock()
	if len(h.webhookBuffer) == 0 {
		h.mu.Unlock()
		return nil
	}
	logs := make([]slog.Record, len(h.webhookBuffer))
	copy(logs, h.webhookBuffer)
	h.webhookBuffer = h.webhookBuffer[:0]
	h.mu.Unlock()
	return sendToWebhook(h.httpClient, h.webhookURL, h.appName, h.env, logs)
}

func (h *hybridLogger) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return nil
	}
	err := h.file.Close()
	h.file = nil
	return err
}
