package record

import (
	"encoding/binary"
	"math"

	"github.com/hyp3rd/ewrap"
)

// FrameLength computes the byte length of the record that starts at offset in buf.
//
// Without variable fields the length is fixedSize. With variable fields the uint32
// little-endian value stored at offset+fixedSize is added, plus the 4-byte prefix itself.
// The length read from the wire is checked against the bytes remaining in buf; a record
// that would run past the end yields ErrFrameOverrun instead of an out-of-range read.
func FrameLength(buf []byte, offset, fixedSize int, hasVarFields bool) (int, error) {
	if offset < 0 || fixedSize < 0 {
		return 0, ewrap.Wrap(ErrInvalidLayout, "negative offset or fixed size").
			WithMetadata("offset", offset).
			WithMetadata("fixed_size", fixedSize)
	}

	remaining := len(buf) - offset
	if remaining < 0 {
		remaining = 0
	}

	if !hasVarFields {
		if fixedSize > remaining {
			return 0, shortRecord(offset, fixedSize, remaining)
		}

		return fixedSize, nil
	}

	prefixEnd := fixedSize + VarLengthPrefixSize
	if prefixEnd > remaining {
		return 0, shortRecord(offset, prefixEnd, remaining)
	}

	varLen := binary.LittleEndian.Uint32(buf[offset+fixedSize : offset+prefixEnd])

	total := uint64(prefixEnd) + uint64(varLen)
	if total > uint64(remaining) || total > math.MaxInt {
		return 0, ewrap.Wrap(ErrFrameOverrun, "record frame runs past buffer end").
			WithMetadata("offset", offset).
			WithMetadata("var_length", varLen).
			WithMetadata("remaining", remaining)
	}

	return int(total), nil
}

// Build assembles a framed record from its fixed prefix and variable region.
// varData must be empty when the layout has no variable fields.
func (l Layout) Build(fixed, varData []byte) ([]byte, error) {
	if len(fixed) != l.FixedSize {
		return nil, ewrap.Wrap(ErrLengthMismatch, "fixed prefix does not match layout").
			WithMetadata("expected", l.FixedSize).
			WithMetadata("actual", len(fixed))
	}

	if !l.HasVarFields {
		if len(varData) > 0 {
			return nil, ewrap.Wrap(ErrLengthMismatch, "layout has no variable region")
		}

		out := make([]byte, len(fixed))
		copy(out, fixed)

		return out, nil
	}

	if uint64(len(varData)) > math.MaxUint32 {
		return nil, ewrap.Wrap(ErrLengthMismatch, "variable region exceeds uint32 range")
	}

	out := make([]byte, 0, len(fixed)+VarLengthPrefixSize+len(varData))
	out = append(out, fixed...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(varData)))
	out = append(out, varData...)

	return out, nil
}

// Check verifies that rec holds exactly one framed record of this layout.
func (l Layout) Check(rec []byte) error {
	size, err := l.Frame(rec, 0)
	if err != nil {
		return err
	}

	if size != len(rec) {
		return ewrap.Wrap(ErrLengthMismatch, "trailing bytes after record frame").
			WithMetadata("framed", size).
			WithMetadata("actual", len(rec))
	}

	return nil
}

func shortRecord(offset, needed, remaining int) error {
	return ewrap.Wrap(ErrShortRecord, "record truncated").
		WithMetadata("offset", offset).
		WithMetadata("needed", needed).
		WithMetadata("remaining", remaining)
}
