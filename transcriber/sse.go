package transcriber

import (
	"bufio"
	"io"
	"strings"
)

const maxEventSize = 1 << 20

type sseEvent struct {
	Event string
	Data  string
}

// sseReader reads server-sent events. Multi-line data fields are joined
// with newlines and comment lines are skipped.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &sseReader{scanner: s}
}

// Next returns io.EOF once the stream ends without a pending event.
func (r *sseReader) Next() (*sseEvent, error) {
	var ev sseEvent
	hasData := false

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if hasData {
				return &ev, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseSSELine(line)
		switch field {
		case "data":
			if hasData {
				ev.Data += "\n" + value
			} else {
				ev.Data = value
				hasData = true
			}
		case "event":
			ev.Event = value
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if hasData {
		return &ev, nil
	}
	return nil, io.EOF
}

func parseSSELine(line string) (field, value string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}
