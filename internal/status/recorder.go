package status

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Entry is one recorded log line.
type Entry struct {
	Time    time.Time              `json:"time"`
	Level   string                 `json:"level"`
	Logger  string                 `json:"logger,omitempty"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// Recorder is a zapcore.Core that keeps the most recent entries in a
// fixed-size ring for the log viewer. Writes never block on readers
// beyond a short critical section.
type Recorder struct {
	zapcore.LevelEnabler
	ring   *ring
	fields []zapcore.Field
}

// NewRecorder creates a recorder holding up to size entries at or above level.
func NewRecorder(size int, level zapcore.LevelEnabler) *Recorder {
	if size <= 0 {
		size = 1
	}
	return &Recorder{
		LevelEnabler: level,
		ring:         &ring{entries: make([]Entry, size)},
	}
}

func (r *Recorder) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(r.fields)+len(fields))
	merged = append(merged, r.fields...)
	merged = append(merged, fields...)
	return &Recorder{LevelEnabler: r.LevelEnabler, ring: r.ring, fields: merged}
}

func (r *Recorder) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if r.Enabled(e.Level) {
		return ce.AddCore(e, r)
	}
	return ce
}

func (r *Recorder) Write(e zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range r.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	entry := Entry{
		Time:    e.Time,
		Level:   e.Level.String(),
		Logger:  e.LoggerName,
		Message: e.Message,
	}
	if len(enc.Fields) > 0 {
		entry.Fields = enc.Fields
	}
	r.ring.add(entry)
	return nil
}

func (r *Recorder) Sync() error { return nil }

// Tail returns up to n of the newest entries, oldest first. n <= 0 returns all.
func (r *Recorder) Tail(n int) []Entry {
	return r.ring.tail(n)
}

// Total returns how many entries were ever recorded.
func (r *Recorder) Total() uint64 {
	r.ring.mu.Lock()
	defer r.ring.mu.Unlock()
	return r.ring.total
}

type ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	total   uint64
}

func (r *ring) add(e Entry) {
	r.mu.Lock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	r.total++
	r.mu.Unlock()
}

func (r *ring) tail(n int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.entries)
	if r.total < uint64(count) {
		count = int(r.total)
	}
	if n > 0 && n < count {
		count = n
	}
	out := make([]Entry, count)
	start := r.next - count
	if start < 0 {
		start += len(r.entries)
	}
	for i := range out {
		out[i] = r.entries[(start+i)%len(r.entries)]
	}
	return out
}
