package mini

// Event is one trigger inside a cycle. Time and Duration are fractions of
// the cycle. Numeric events carry their value in Number and an empty Sound.
type Event struct {
	Sound    string
	Number   float64
	Numeric  bool
	Time     float64
	Duration float64
}

// Name returns the token text the event was parsed from.
func (e Event) Name() string {
	if e.Numeric {
		return formatNumber(e.Number)
	}
	return e.Sound
}

const (
	gapFactor = 0.9
	restToken = "~"
)
