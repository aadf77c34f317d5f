package ytdl_client

import (
	"fmt"
	"io"
	"os"

	"github.com/isseis/go-ytdl-client/logger"
)

// Logger defines the logging operations used by the client and handed down
// to the registry, the sequencer and the progress channel.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	FlushWebhook() error
}

// loggerAdapter adapts logger.Logger to the ytdl_client.Logger interface.
type loggerAdapter struct {
	logger logger.Logger
}

// NewLoggerAdapter wraps logger.Logger.
func NewLoggerAdapter(log logger.Logger) Logger {
	return &loggerAdapter{logger: log}
}

func (a *loggerAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *loggerAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *loggerAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *loggerAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *loggerAdapter) FlushWebhook() error           { return a.logger.FlushWebhook() }

// fallbackLogger prints to stderr when no logger was configured. Debug
// messages are dropped.
type fallbackLogger struct {
	w io.Writer
}

func newFallbackLogger() *fallbackLogger {
	return &fallbackLogger{w: os.Stderr}
}

func (f *fallbackLogger) Debug(msg string, args ...any) {}

func (f *fallbackLogger) Info(msg string, args ...any) {
	fmt.Fprintf(f.w, "[INFO] %s\n", formatLogMessage(msg, args...))
}

func (f *fallbackLogger) Warn(msg string, args ...any) {
	fmt.Fprintf(f.w, "[WARN] %s\n", formatLogMessage(msg, args...))
}

func (f *fallbackLogger) Error(msg string, args ...any) {
	fmt.Fprintf(f.w, "[ERROR] %s\n", formatLogMessage(msg, args...))
}

func (f *fallbackLogger) FlushWebhook() error {
	return nil
}

// formatLogMessage appends key=value pairs to msg. A trailing key without a
// value is ignored.
func formatLogMessage(msg string, args ...any) string {
	result := msg
	for i := 0; i+1 < len(args); i += 2 {
		result += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	return result
}
