package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/hyp3rd/hyperstream"
)

const levelPadding = 5

type entry struct {
	level   hyperstream.Level
	message string
	fields  []hyperstream.Field
}

type encoder interface {
	encode(buf *bytes.Buffer, e *entry, cfg *hyperstream.LogConfig)
}

func newEncoder(jsonOutput bool) encoder {
	if jsonOutput {
		return jsonEncoder{}
	}

	return textEncoder{}
}

// textEncoder writes "<time> [LEVEL] message {key=value, ...}".
type textEncoder struct{}

func (textEncoder) encode(buf *bytes.Buffer, e *entry, cfg *hyperstream.LogConfig) {
	if !cfg.DisableTimestamp {
		buf.WriteString(time.Now().Format(cfg.TimeFormat))
		buf.WriteByte(' ')
	}

	level := e.level.String()

	buf.WriteByte('[')

	for range levelPadding - len(level) {
		buf.WriteByte(' ')
	}

	buf.WriteString(level)
	buf.WriteString("] ")
	buf.WriteString(e.message)

	if len(e.fields) > 0 {
		buf.WriteString(" {")

		for i, field := range e.fields {
			if i > 0 {
				buf.WriteString(", ")
			}

			buf.WriteString(field.Key)
			buf.WriteByte('=')
			writeTextValue(buf, field.Value)
		}

		buf.WriteByte('}')
	}

	buf.WriteByte('\n')
}

func writeTextValue(buf *bytes.Buffer, value any) {
	switch val := value.(type) {
	case string:
		buf.WriteString(val)
	case int:
		buf.WriteString(strconv.Itoa(val))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case error:
		buf.WriteString(val.Error())
	case fmt.Stringer:
		buf.WriteString(val.String())
	default:
		fmt.Fprintf(buf, "%+v", val)
	}
}

// jsonEncoder writes one JSON object per line.
type jsonEncoder struct{}

func (jsonEncoder) encode(buf *bytes.Buffer, e *entry, cfg *hyperstream.LogConfig) {
	buf.WriteByte('{')

	if !cfg.DisableTimestamp {
		buf.WriteString(`"time":`)
		writeJSONString(buf, time.Now().Format(cfg.TimeFormat))
		buf.WriteByte(',')
	}

	buf.WriteString(`"severity":"`)
	buf.WriteString(e.level.String())
	buf.WriteString(`","message":`)
	writeJSONString(buf, e.message)

	for _, field := range e.fields {
		buf.WriteByte(',')
		writeJSONString(buf, field.Key)
		buf.WriteByte(':')
		writeJSONValue(buf, field.Value)
	}

	buf.WriteString("}\n")
}

//nolint:cyclop
func writeJSONValue(buf *bytes.Buffer, value any) {
	switch val := value.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		writeJSONString(buf, val)
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case float64:
		buf.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case error:
		writeJSONString(buf, val.Error())
	case time.Time:
		writeJSONString(buf, val.Format(time.RFC3339Nano))
	case time.Duration:
		writeJSONString(buf, val.String())
	case fmt.Stringer:
		writeJSONString(buf, val.String())
	default:
		data, err := json.Marshal(val)
		if err != nil {
			writeJSONString(buf, fmt.Sprintf("%+v", val))

			return
		}

		buf.Write(data)
	}
}

// writeJSONString writes s as a quoted JSON string.
func writeJSONString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"

	buf.WriteByte('"')

	start := 0

	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				buf.WriteString(s[start:i])
				buf.WriteString(`�`)

				i += size
				start = i

				continue
			}

			i += size

			continue
		}

		if c >= 0x20 && c != '"' && c != '\\' {
			i++

			continue
		}

		buf.WriteString(s[start:i])

		switch c {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(hex[c>>4])
			buf.WriteByte(hex[c&0xf])
		}

		i++
		start = i
	}

	buf.WriteString(s[start:])
	buf.WriteByte('"')
}
