package content

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hupe1980/encounter/core"
)

var (
	// ErrNoArray means the output contained no '['.
	ErrNoArray = errors.New("content: no JSON array in output")
	// ErrNoTurns means parsing succeeded but yielded no valid turns.
	ErrNoTurns = errors.New("content: no dialogue turns")
	// ErrMalformed means the array could not be decoded even after repair.
	ErrMalformed = errors.New("content: malformed dialogue output")
)

// StripFences removes markdown code fence lines such as ```json.
func StripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// MatchBracket returns the index of the ']' closing the '[' at start,
// ignoring brackets inside string literals. It returns -1 if the input ends
// first.
func MatchBracket(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Repair closes a truncated JSON fragment: an open string literal is
// terminated, a dangling comma is dropped and every unmatched '{' or '[' gets
// its closer in reverse order. Balanced input is returned unchanged.
func Repair(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 && !inString {
		return s
	}

	var b strings.Builder
	if inString {
		if escaped {
			s = s[:len(s)-1]
		}
		b.WriteString(s)
		b.WriteByte('"')
	} else {
		b.WriteString(strings.TrimRight(strings.TrimRight(s, " \t\r\n"), ","))
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Salvage keeps only the complete top-level objects of a truncated array and
// closes it. It returns "" when no object completed.
func Salvage(s string) string {
	depth := 0
	last := -1
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if c == '}' && depth == 1 {
				last = i
			}
		}
	}
	if last < 0 {
		return ""
	}
	return s[:last+1] + "]"
}

type wireTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// decodeTurns decodes an array leniently: elements that are not turn
// objects are skipped.
func decodeTurns(s string) ([]core.DialogueTurn, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	turns := make([]core.DialogueTurn, 0, len(raw))
	for _, r := range raw {
		var w wireTurn
		if err := json.Unmarshal(r, &w); err != nil {
			continue
		}
		t := core.DialogueTurn{SpeakerID: strings.TrimSpace(w.Speaker), Text: strings.TrimSpace(w.Text)}
		if t.Valid() {
			turns = append(turns, t)
		}
	}
	return turns, nil
}

// ParseTurns extracts dialogue turns from raw model output. It strips code
// fences, takes the first JSON array, repairs it when truncated and, as a
// last resort, keeps the complete objects before the truncation point.
// Turns without speaker or text are dropped.
func ParseTurns(raw string) ([]core.DialogueTurn, error) {
	s := StripFences(raw)
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return nil, ErrNoArray
	}

	var candidate string
	if end := MatchBracket(s, start); end >= 0 {
		candidate = s[start : end+1]
	} else {
		candidate = Repair(s[start:])
	}

	turns, err := decodeTurns(candidate)
	if err != nil {
		salvaged := Salvage(s[start:])
		if salvaged == "" {
			return nil, ErrMalformed
		}
		if turns, err = decodeTurns(salvaged); err != nil {
			return nil, ErrMalformed
		}
	}
	if len(turns) == 0 {
		return nil, ErrNoTurns
	}
	return turns, nil
}
