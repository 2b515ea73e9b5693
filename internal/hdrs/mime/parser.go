/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

package mime

import "errors"

// MaxFieldLength caps a single (folded) field line.
const MaxFieldLength = 64 * 1024

// Parser errors.
var (
	ErrTruncatedInput        = errors.New("mime: missing header terminator with data pending")
	ErrEmbeddedNul           = errors.New("mime: embedded NUL byte in header")
	ErrWhitespaceBeforeColon = errors.New("mime: whitespace between field name and colon")
	ErrFieldTooLong          = errors.New("mime: field exceeds maximum length")
)

// scanner states for the line automaton.
const (
	scanBefore = iota
	scanFoundCR
	scanInside
	scanAfter
)

func tokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// ParseFields scans a header block and attaches one field per (folded)
// line. Folded continuation lines are joined by overwriting the line break
// with spaces. With eof false, a block whose terminating blank line has not
// arrived yet fails with ErrTruncatedInput; with eof true the unterminated
// last line becomes the last field. The number of input bytes consumed is
// returned.
func (m *Hdr) ParseFields(data []byte, eof bool) (int, error) {
	// Split into logical lines first, folding continuations.
	type span struct{ start, end int }
	var lines []span
	state := scanBefore
	lineStart := 0
	terminated := false
	consumed := len(data)

	flush := func(end, next int) bool {
		// A line starting with SP/HT continues the previous field.
		if len(lines) > 0 && end > lineStart && (data[lineStart] == ' ' || data[lineStart] == '\t') {
			lines[len(lines)-1].end = end
		} else if end > lineStart {
			lines = append(lines, span{lineStart, end})
		} else {
			// Blank line: header terminator.
			return true
		}
		lineStart = next
		return false
	}

scan:
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == 0 {
			return 0, ErrEmbeddedNul
		}
		switch state {
		case scanBefore, scanInside:
			if c == '\r' {
				state = scanFoundCR
			} else if c == '\n' {
				if flush(i, i+1) {
					terminated = true
					consumed = i + 1
					break scan
				}
				state = scanAfter
			} else {
				state = scanInside
			}
		case scanFoundCR:
			if c == '\n' {
				if flush(i-1, i+1) {
					terminated = true
					consumed = i + 1
					break scan
				}
				state = scanAfter
			} else if c == '\r' {
				if flush(i-1, i) {
					terminated = true
					consumed = i
					break scan
				}
			} else {
				state = scanInside
			}
		case scanAfter:
			if c == '\r' {
				state = scanFoundCR
			} else if c == '\n' {
				if flush(i, i+1) {
					terminated = true
					consumed = i + 1
					break scan
				}
			} else {
				state = scanInside
			}
		}
	}

	if !terminated {
		if !eof {
			return 0, ErrTruncatedInput
		}
		// Unterminated final line at true EOF becomes the last field.
		if lineStart < len(data) {
			flush(len(data), len(data))
		}
	}

	for _, ln := range lines {
		if ln.end-ln.start > MaxFieldLength {
			return 0, ErrFieldTooLong
		}
		if err := m.parseFieldLine(data[ln.start:ln.end]); err != nil {
			return 0, err
		}
	}
	return consumed, nil
}

func (m *Hdr) parseFieldLine(line []byte) error {
	// Field lines whose name does not start with a token character or '@'
	// are silently dropped.
	if len(line) == 0 || (!tokenChar(line[0]) && line[0] != '@') {
		return nil
	}

	colon := -1
	for i := 0; i < len(line); i++ {
		if line[i] == ':' {
			colon = i
			break
		}
	}
	if colon <= 0 {
		return nil
	}

	name := line[:colon]
	for i := 0; i < len(name); i++ {
		if name[i] == ' ' || name[i] == '\t' {
			return ErrWhitespaceBeforeColon
		}
	}

	value := line[colon+1:]
	// Interior line breaks from folding become spaces.
	v := make([]byte, 0, len(value))
	for _, c := range value {
		if c == '\r' || c == '\n' {
			c = ' '
		}
		v = append(v, c)
	}
	// Trim optional whitespace around the value.
	start, end := 0, len(v)
	for start < end && (v[start] == ' ' || v[start] == '\t') {
		start++
	}
	for end > start && (v[end-1] == ' ' || v[end-1] == '\t') {
		end--
	}

	_, err := m.Attach(string(name), string(v[start:end]))
	return err
}
