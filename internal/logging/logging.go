// Package logging builds the app logger. Alongside the console output,
// entries are mirrored to a sink so the UI can show a live log feed.
package logging

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Entry is one log line as shown in the UI feed.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Sink receives every log entry at or above Info.
type Sink func(Entry)

// New builds the logger. sink may be nil; SetSink can attach one later,
// which matters because the event emitter only exists after startup.
func New(sink Sink) (*zap.Logger, *SinkCore) {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")

	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		zapcore.InfoLevel,
	)
	sinkCore := &SinkCore{sink: sink}

	return zap.New(zapcore.NewTee(console, sinkCore)), sinkCore
}

// SinkCore forwards entries to the attached sink. It carries no fields
// of its own; the UI feed shows messages, not structured payloads.
type SinkCore struct {
	mu   sync.Mutex
	sink Sink
}

// SetSink attaches or replaces the sink.
func (c *SinkCore) SetSink(sink Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

func (c *SinkCore) Enabled(level zapcore.Level) bool {
	return level >= zapcore.InfoLevel
}

func (c *SinkCore) With(fields []zapcore.Field) zapcore.Core {
	return c
}

func (c *SinkCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *SinkCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink == nil {
		return nil
	}
	sink(Entry{Time: ent.Time, Level: ent.Level.String(), Message: ent.Message})
	return nil
}

func (c *SinkCore) Sync() error { return nil }
