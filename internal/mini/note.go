package mini

import "strconv"

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

const defaultNote = 60

// ParseNote maps a note name such as "c3", "C#4" or "eb" to a MIDI number
// using (octave+1)*12 + semitone. The octave defaults to 4. Anything that is
// not a note name maps to 60.
func ParseNote(name string) int {
	if name == "" {
		return defaultNote
	}
	base, ok := noteOffsets[lower(name[0])]
	if !ok {
		return defaultNote
	}
	i := 1
	if i < len(name) {
		switch name[i] {
		case '#':
			base++
			i++
		case 'b':
			base--
			i++
		}
	}
	octave := 4
	if i < len(name) {
		v, err := strconv.Atoi(name[i:])
		if err != nil || v < 0 {
			return defaultNote
		}
		octave = v
	}
	return (octave+1)*12 + base
}

// Resolve returns the MIDI note of ev: its value when numeric, otherwise the
// parsed note name.
func Resolve(ev Event) int {
	if ev.Numeric {
		return int(ev.Number)
	}
	return ParseNote(ev.Sound)
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
