package record

import "github.com/hyp3rd/ewrap"

// Common errors for the record package.
var (
	// ErrShortRecord is returned when a buffer ends before the fixed prefix or the length prefix.
	ErrShortRecord = ewrap.New("record is shorter than its layout")

	// ErrFrameOverrun is returned when a variable-length prefix points past the end of the buffer.
	ErrFrameOverrun = ewrap.New("variable length exceeds remaining buffer")

	// ErrInvalidLayout is returned for layouts that cannot frame a record.
	ErrInvalidLayout = ewrap.New("invalid record layout")

	// ErrResourceExhausted is returned when a record buffer cannot be allocated.
	ErrResourceExhausted = ewrap.New("record buffer allocation exceeds available memory")

	// ErrLengthMismatch is returned when a record's bytes do not match its framed length.
	ErrLengthMismatch = ewrap.New("record length does not match its frame")
)
