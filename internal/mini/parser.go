package mini

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse converts a line of mini-notation into the events of one cycle.
// cycle selects the option of every <a b c> alternation group.
func Parse(text string, cycle int) ([]Event, error) {
	src := strings.TrimSpace(stripComment(text))
	if src == "" {
		return nil, nil
	}
	src, err := expandAlternation(src, cycle)
	if err != nil {
		return nil, err
	}
	tokens := strings.Fields(src)
	if len(tokens) == 0 {
		return nil, nil
	}
	step := 1.0 / float64(len(tokens))
	events := make([]Event, 0, len(tokens))
	for i, tok := range tokens {
		at := float64(i) * step
		evs, err := parseToken(tok, at, step)
		if err != nil {
			return nil, fmt.Errorf("token %d %q: %w", i+1, tok, err)
		}
		events = append(events, evs...)
	}
	return events, nil
}

// HasAlternation reports whether text contains a <...> group and therefore
// parses differently from cycle to cycle.
func HasAlternation(text string) bool {
	return strings.ContainsRune(stripComment(text), '<')
}

func parseToken(tok string, at, step float64) ([]Event, error) {
	if i := strings.IndexByte(tok, '*'); i >= 0 {
		n, err := parseCount(tok[i+1:])
		if err != nil {
			return nil, err
		}
		base := tok[:i]
		if base == restToken {
			return nil, nil
		}
		sub := step / float64(n)
		out := make([]Event, 0, n)
		for k := 0; k < n; k++ {
			ev, err := newEvent(base, at+float64(k)*sub, sub*gapFactor)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
		return out, nil
	}
	if i := strings.IndexByte(tok, '/'); i >= 0 {
		n, err := parseCount(tok[i+1:])
		if err != nil {
			return nil, err
		}
		base := tok[:i]
		if base == restToken {
			return nil, nil
		}
		ev, err := newEvent(base, at, step/float64(n))
		if err != nil {
			return nil, err
		}
		return []Event{ev}, nil
	}
	if tok == restToken {
		return nil, nil
	}
	ev, err := newEvent(tok, at, step*gapFactor)
	if err != nil {
		return nil, err
	}
	return []Event{ev}, nil
}

func newEvent(name string, at, dur float64) (Event, error) {
	if name == "" {
		return Event{}, fmt.Errorf("missing sound name")
	}
	ev := Event{Sound: name, Time: at, Duration: dur}
	if v, err := strconv.ParseFloat(name, 64); err == nil {
		ev.Sound = ""
		ev.Number = v
		ev.Numeric = true
	}
	return ev, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return n, nil
}

// expandAlternation replaces each <...> group with the option picked by cycle.
func expandAlternation(src string, cycle int) (string, error) {
	if !strings.ContainsAny(src, "<>") {
		return src, nil
	}
	var b strings.Builder
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '<':
			end := strings.IndexByte(src[i+1:], '>')
			if end < 0 {
				return "", fmt.Errorf("unterminated alternation at %d", i)
			}
			body := src[i+1 : i+1+end]
			if strings.ContainsRune(body, '<') {
				return "", fmt.Errorf("nested alternation at %d", i)
			}
			options := strings.Fields(body)
			if len(options) == 0 {
				return "", fmt.Errorf("empty alternation at %d", i)
			}
			b.WriteString(options[mod(cycle, len(options))])
			i += end + 1
		case '>':
			return "", fmt.Errorf("unexpected '>' at %d", i)
		default:
			b.WriteByte(src[i])
		}
	}
	return b.String(), nil
}

func stripComment(s string) string {
	if i := strings.Index(s, "//"); i >= 0 {
		return s[:i]
	}
	return s
}

func mod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
