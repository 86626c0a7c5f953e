// Package record implements the binary record framing used between the stream core,
// its upstream producers and its downstream sinks.
//
// A framed record has the layout:
//
//	fixedFields    (FixedSize bytes)
//	varFieldLength (uint32, little-endian)   present iff HasVarFields
//	varFieldBytes  (varFieldLength bytes)    present iff HasVarFields
//
// The package provides the framer (FrameLength), a growable batching arena (Buffer)
// and an iterator over flushed batches (Packet).
package record

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/hyp3rd/ewrap"
)

const (
	// VarLengthPrefixSize is the size of the variable-region length prefix.
	VarLengthPrefixSize = 4

	layoutKeyFixedSize = "fixed_size"
	layoutKeyVarFields = "var_fields"
)

// Layout carries the framing parameters of a record stream.
type Layout struct {
	// FixedSize is the size in bytes of the fixed-field prefix.
	FixedSize int
	// HasVarFields reports whether each record carries a length-prefixed variable region.
	HasVarFields bool
}

// Validate reports whether the layout can frame a non-empty record.
func (l Layout) Validate() error {
	if l.FixedSize < 0 {
		return ewrap.Wrap(ErrInvalidLayout, "fixed size cannot be negative").
			WithMetadata("fixed_size", l.FixedSize)
	}

	if l.FixedSize == 0 && !l.HasVarFields {
		return ewrap.Wrap(ErrInvalidLayout, "layout describes zero-length records")
	}

	return nil
}

// MinRecordSize returns the smallest framed length a record of this layout can have.
func (l Layout) MinRecordSize() int {
	if l.HasVarFields {
		return l.FixedSize + VarLengthPrefixSize
	}

	return l.FixedSize
}

// Frame returns the framed length of the record starting at offset in buf.
func (l Layout) Frame(buf []byte, offset int) (int, error) {
	return FrameLength(buf, offset, l.FixedSize, l.HasVarFields)
}

// String renders the layout as its compact descriptor, e.g. "fixed_size=10&var_fields=true".
// The descriptor is what the default layout resolver understands.
func (l Layout) String() string {
	values := url.Values{}
	values.Set(layoutKeyFixedSize, strconv.Itoa(l.FixedSize))
	values.Set(layoutKeyVarFields, strconv.FormatBool(l.HasVarFields))

	return values.Encode()
}

// ParseLayout decodes a compact layout descriptor produced by Layout.String.
func ParseLayout(descriptor string) (Layout, error) {
	values, err := url.ParseQuery(strings.TrimSpace(descriptor))
	if err != nil {
		return Layout{}, ewrap.Wrap(ErrInvalidLayout, "malformed layout descriptor").
			WithMetadata("descriptor", descriptor).
			WithMetadata("cause", err.Error())
	}

	if !values.Has(layoutKeyFixedSize) {
		return Layout{}, ewrap.Wrap(ErrInvalidLayout, "layout descriptor has no fixed size").
			WithMetadata("descriptor", descriptor)
	}

	fixedSize, err := strconv.Atoi(values.Get(layoutKeyFixedSize))
	if err != nil {
		return Layout{}, ewrap.Wrap(ErrInvalidLayout, "invalid fixed size").
			WithMetadata("descriptor", descriptor)
	}

	layout := Layout{FixedSize: fixedSize}

	if values.Has(layoutKeyVarFields) {
		layout.HasVarFields, err = strconv.ParseBool(values.Get(layoutKeyVarFields))
		if err != nil {
			return Layout{}, ewrap.Wrap(ErrInvalidLayout, "invalid var fields flag").
				WithMetadata("descriptor", descriptor)
		}
	}

	err = layout.Validate()
	if err != nil {
		return Layout{}, err
	}

	return layout, nil
}
