package stream

import "github.com/hyp3rd/ewrap"

var (
	// ErrNilPlugin is returned by New when no plugin is supplied.
	ErrNilPlugin = ewrap.New("plugin cannot be nil")
	// ErrNilSink is returned when a nil downstream connection is registered.
	ErrNilSink = ewrap.New("sink cannot be nil")
	// ErrRegistrationClosed is returned when a connection is registered after shutdown started.
	ErrRegistrationClosed = ewrap.New("connection registration is closed")
	// ErrAnchorNotOpen is returned when writing to an output anchor that is not open.
	ErrAnchorNotOpen = ewrap.New("output anchor is not open")
	// ErrAnchorAlreadyOpen is returned when an output anchor is opened twice.
	ErrAnchorAlreadyOpen = ewrap.New("output anchor is already open")
	// ErrAnchorClosed is returned when opening an output anchor that was already closed.
	ErrAnchorClosed = ewrap.New("output anchor is closed")
	// ErrLayoutMismatch is returned when an output record's framed length differs from its size.
	ErrLayoutMismatch = ewrap.New("record does not match the anchor layout")
)
