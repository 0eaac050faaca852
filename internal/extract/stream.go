package extract

import (
	"encoding/json"
	"strings"
)

// Buffer bounds while still hunting for the opening '['. Schema wrapper
// prose ahead of the array is useless once a decode attempt failed, so the
// buffer is trimmed to a trailing window instead of growing without bound.
const (
	seekBufferMax  = 2000
	seekBufferKeep = 500
)

// StreamParser pulls complete SchoolRecord objects out of a token stream as
// they close. It is fed arbitrary-sized text fragments and owns its buffer
// exclusively; it is meant for a single producer and needs no locking.
//
// States: seeking the innermost array's '[', scanning for objects inside it,
// done once the array's ']' closes. Further feeds after that are no-ops.
type StreamParser struct {
	buf     string
	inArray bool
	done    bool
}

func NewStreamParser() *StreamParser {
	return &StreamParser{}
}

// Done reports whether the enclosing array has closed.
func (p *StreamParser) Done() bool { return p.done }

// Feed appends chunk to the buffer and returns the fully-decoded records
// found since the last call, in document order. It never fails on malformed
// input: trailing data that does not yet decode stays buffered awaiting the
// next chunk.
func (p *StreamParser) Feed(chunk string) []SchoolRecord {
	p.buf += chunk
	if p.done {
		return nil
	}

	if !p.inArray {
		// Find the array start. Markdown fences and the {"schools": wrapper
		// all precede the first '[', so everything before it is droppable.
		start := strings.IndexByte(p.buf, '[')
		if start == -1 {
			if len(p.buf) > seekBufferMax {
				p.buf = p.buf[len(p.buf)-seekBufferKeep:]
			}
			return nil
		}
		p.inArray = true
		p.buf = p.buf[start+1:]
	}

	var records []SchoolRecord
	for {
		i := 0
		for i < len(p.buf) && isSkippable(p.buf[i]) {
			i++
		}
		if i >= len(p.buf) {
			p.buf = p.buf[i:]
			break
		}

		switch p.buf[i] {
		case ']':
			p.buf = p.buf[i+1:]
			p.done = true
			return records
		case '{':
			rec, hasName, consumed, err := decodeObjectAt(p.buf[i:])
			if err != nil {
				// Insufficient data; wait for the next feed.
				p.buf = p.buf[i:]
				return records
			}
			p.buf = p.buf[i+consumed:]
			if hasName {
				rec.Normalize()
				records = append(records, rec)
			}
			// Objects without school_name are schema-wrapper noise; drop.
		default:
			// Unexpected character; advance one byte to resynchronize.
			// Bounded: each iteration consumes input, never loops in place.
			p.buf = p.buf[i+1:]
		}
	}
	return records
}

// Finish runs terminal recovery over whatever remains buffered after the
// stream ended or broke, returning any records that closed but were not yet
// consumed. The parser is terminal afterwards.
func (p *StreamParser) Finish() []SchoolRecord {
	if p.done {
		return nil
	}
	p.done = true
	if !p.inArray {
		return RecoverRecords(p.buf)
	}
	return recoverFromArrayBody(p.buf)
}

// RecoverRecords extracts whatever valid records exist in a best-effort,
// possibly truncated, complete response text. It stops at the first
// unparseable or prematurely terminated object, so a connection drop or
// token-limit truncation yields partial results rather than total failure.
func RecoverRecords(text string) []SchoolRecord {
	start := strings.IndexByte(text, '[')
	if start == -1 {
		return nil
	}
	return recoverFromArrayBody(text[start+1:])
}

func recoverFromArrayBody(body string) []SchoolRecord {
	var records []SchoolRecord
	i := 0
	for i < len(body) {
		for i < len(body) && isSkippable(body[i]) {
			i++
		}
		if i >= len(body) {
			break
		}
		if body[i] != '{' {
			// ']' ends the array; anything else is truncation garbage. Stop.
			break
		}
		rec, hasName, consumed, err := decodeObjectAt(body[i:])
		if err != nil {
			break
		}
		i += consumed
		if hasName {
			rec.Normalize()
			records = append(records, rec)
		}
	}
	return records
}

// decodeObjectAt attempts one JSON object decode at the start of s. It
// reports whether the object carried a school_name key and how many bytes
// the value consumed. The error is non-nil when the data is not (yet) a
// complete decodable value.
func decodeObjectAt(s string) (SchoolRecord, bool, int, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return SchoolRecord{}, false, 0, err
	}
	consumed := int(dec.InputOffset())

	nameRaw, hasName := raw["school_name"]
	if !hasName {
		return SchoolRecord{}, false, consumed, nil
	}

	var rec SchoolRecord
	if err := json.Unmarshal([]byte(s[:consumed]), &rec); err != nil {
		// The object decoded as a map but not as a record (e.g. school_name
		// is not a string). Treat as noise rather than failing the stream.
		return SchoolRecord{}, false, consumed, nil
	}
	var name string
	if err := json.Unmarshal(nameRaw, &name); err != nil || strings.TrimSpace(name) == "" {
		return SchoolRecord{}, false, consumed, nil
	}
	return rec, true, consumed, nil
}

func isSkippable(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ','
}
