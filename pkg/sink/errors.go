package sink

import "github.com/hyp3rd/ewrap"

var (
	// ErrSinkClosed is returned when a sink is used after Close.
	ErrSinkClosed = ewrap.New("sink is closed")
	// ErrNotInitialized is returned when records arrive before Init.
	ErrNotInitialized = ewrap.New("sink is not initialized")
	// ErrRejected is reported by a remote sink that refused the schema or a record.
	ErrRejected = ewrap.New("remote sink rejected the stream")
)
