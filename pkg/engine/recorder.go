// Package engine provides hosts for the stream core: a Recorder that captures everything it
// is told, a LogEngine that routes messages to a structured logger, and a WireEngine that
// encodes them as binary status frames.
package engine

import (
	"sync"

	"github.com/hyp3rd/hyperstream"
)

// Message is one status message sent by a plugin.
type Message struct {
	ToolID int
	Status hyperstream.MessageStatus
	Text   string
}

// BrowseFactory supplies the browse-everywhere sink of an output anchor.
type BrowseFactory func(toolID int, anchor string) hyperstream.IncomingConnection

// Recorder is an Engine that keeps every message and progress update in memory.
type Recorder struct {
	browse BrowseFactory

	mu       sync.Mutex
	messages []Message
	progress []float64
	nextID   uint32
	reserved map[uint32]int
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithBrowseEverywhere makes the recorder reserve a browse-everywhere sink for every output
// anchor, built by factory when the anchor opens.
func WithBrowseEverywhere(factory BrowseFactory) RecorderOption {
	return func(r *Recorder) {
		r.browse = factory
	}
}

// NewRecorder creates an empty recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{reserved: make(map[uint32]int)}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

var _ hyperstream.Engine = (*Recorder)(nil)

// OutputMessage records the message.
func (r *Recorder) OutputMessage(toolID int, status hyperstream.MessageStatus, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, Message{ToolID: toolID, Status: status, Text: message})
}

// OutputToolProgress records the progress.
func (r *Recorder) OutputToolProgress(_ int, progress float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = append(r.progress, progress)
}

// BrowseEverywhereReserveAnchor returns a fresh id when a factory is configured, zero otherwise.
func (r *Recorder) BrowseEverywhereReserveAnchor(toolID int) uint32 {
	if r.browse == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.reserved[r.nextID] = toolID

	return r.nextID
}

// BrowseEverywhereGetConnection builds the sink of a reserved id.
func (r *Recorder) BrowseEverywhereGetConnection(anchorID uint32, toolID int, anchorName string) hyperstream.IncomingConnection {
	r.mu.Lock()
	owner, ok := r.reserved[anchorID]
	r.mu.Unlock()

	if !ok || owner != toolID || r.browse == nil {
		return nil
	}

	return r.browse(toolID, anchorName)
}

// Messages returns every recorded message in order.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Message(nil), r.messages...)
}

// MessagesWith returns the messages carrying status.
func (r *Recorder) MessagesWith(status hyperstream.MessageStatus) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Message

	for _, msg := range r.messages {
		if msg.Status == status {
			out = append(out, msg)
		}
	}

	return out
}

// Count returns how many messages carry status.
func (r *Recorder) Count(status hyperstream.MessageStatus) int {
	return len(r.MessagesWith(status))
}

// Last returns the latest message carrying status.
func (r *Recorder) Last(status hyperstream.MessageStatus) (Message, bool) {
	messages := r.MessagesWith(status)
	if len(messages) == 0 {
		return Message{}, false
	}

	return messages[len(messages)-1], true
}

// Progress returns every recorded tool progress value.
func (r *Recorder) Progress() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]float64(nil), r.progress...)
}
