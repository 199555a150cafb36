// Package diag is the diagnostics sink handed to the resolution core.
//
// The core never logs through a global logger; it reports to a Sink. A
// *log.Logger from github.com/charmbracelet/log satisfies Sink directly.
package diag

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Sink receives structured diagnostics.
type Sink interface {
	Debug(msg interface{}, keyvals ...interface{})
	Warn(msg interface{}, keyvals ...interface{})
}

var _ Sink = (*log.Logger)(nil)

// Discard drops every diagnostic.
var Discard Sink = discard{}

type discard struct{}

func (discard) Debug(interface{}, ...interface{}) {}
func (discard) Warn(interface{}, ...interface{}) {}

// Or returns s, or Discard when s is nil.
func Or(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Record is one captured diagnostic.
type Record struct {
	Level   log.Level
	Message string
	KeyVals []interface{}
}

// Recorder captures diagnostics in memory. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *Recorder) Debug(msg interface{}, keyvals ...interface{}) {
	r.add(log.DebugLevel, msg, keyvals)
}

func (r *Recorder) Warn(msg interface{}, keyvals ...interface{}) {
	r.add(log.WarnLevel, msg, keyvals)
}

func (r *Recorder) add(level log.Level, msg interface{}, keyvals []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{Level: level, Message: fmt.Sprint(msg), KeyVals: keyvals})
}

// Records returns a copy of everything captured so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Warnings returns the messages of captured warnings.
func (r *Recorder) Warnings() []string {
	var out []string
	for _, rec := range r.Records() {
		if rec.Level == log.WarnLevel {
			out = append(out, rec.Message)
		}
	}
	return out
}
