package eval

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/cbegin/loopcode/internal/lang"
	"github.com/cbegin/loopcode/internal/pattern"
	"github.com/cbegin/loopcode/internal/slots"
)

// Transport is the playback control the evaluator drives.
type Transport interface {
	Start()
	Stop()
	SetBPM(bpm float64) float64
	Running() bool
}

// Master is the master bus the evaluator's master setters change.
type Master interface {
	SetVolume(v float64)
	SetLPF(hz float64)
	SetHPF(hz float64)
	SetReverb(amount float64)
	SetDelay(amount float64)
	SetCompressor(thresholdDB, ratio float64)
	SetEQ(band int, db float64)
	Reset()
}

// Result is the outcome of evaluating one statement.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Line    int    `json:"line"`
	Source  string `json:"source"`
}

type Option func(*Evaluator)

func WithTransport(t Transport) Option {
	return func(e *Evaluator) { e.transport = t }
}

func WithMaster(m Master) Option {
	return func(e *Evaluator) { e.master = m }
}

// WithRand sets the source of sometimes/rarely/often draws.
func WithRand(r pattern.RandomSource) Option {
	return func(e *Evaluator) { e.rng = &lockedRand{src: r} }
}

// lockedRand serializes draws; transforms run on the scheduler goroutine
// as well as the evaluating one.
type lockedRand struct {
	mu  sync.Mutex
	src pattern.RandomSource
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

// WithCycle sets the function reporting the current cycle, used to resolve
// alternation when a pattern is first built.
func WithCycle(fn func() int) Option {
	return func(e *Evaluator) { e.cycle = fn }
}

// WithHushHook installs a callback fired after hush().
func WithHushHook(fn func()) Option {
	return func(e *Evaluator) { e.onHush = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// Evaluator runs statements against a slot registry and a fixed table of
// functions. It never panics out to its caller.
type Evaluator struct {
	mu        sync.Mutex
	registry  *slots.Registry
	transport Transport
	master    Master
	rng       pattern.RandomSource
	cycle     func() int
	onHush    func()
	logger    *slog.Logger
}

func New(registry *slots.Registry, opts ...Option) *Evaluator {
	e := &Evaluator{
		registry: registry,
		rng:      &lockedRand{src: rand.New(rand.NewSource(time.Now().UnixNano()))},
		cycle:    func() int { return 0 },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs a single statement.
func (e *Evaluator) Evaluate(line string) Result {
	return e.evaluate(line, 1)
}

// EvaluateAll runs text line by line. A line starting with '.' continues
// the statement above it. A failing statement does not stop the rest.
func (e *Evaluator) EvaluateAll(text string) []Result {
	var results []Result
	for _, st := range splitStatements(text) {
		results = append(results, e.evaluate(st.text, st.line))
	}
	return results
}

func (e *Evaluator) evaluate(line string, lineNo int) (res Result) {
	res = Result{Line: lineNo, Source: strings.TrimSpace(line)}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluation panicked", "line", lineNo, "panic", r)
			res.Success = false
			res.Message = fmt.Sprintf("internal error: %v", r)
		}
	}()
	if lang.IsBlank(line) {
		res.Success = true
		return res
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	node, err := lang.ParseLine(line)
	if err == nil && node == nil {
		res.Success = true
		return res
	}
	var v value
	if err == nil {
		v, err = e.eval(node, &scope{rng: e.rng})
	}
	if err == nil {
		v, err = e.statement(v)
	}
	if err != nil {
		res.Message = fmt.Sprintf("%s in: %s", issue(err), res.Source)
		e.logger.Debug("evaluation failed", "line", lineNo, "err", err)
		return res
	}
	res.Success = true
	res.Message = v.(*control).message
	return res
}

func (e *Evaluator) statement(v value) (value, error) {
	switch v := v.(type) {
	case *control:
		return v, nil
	case *pattern.Pattern:
		return nil, usageError("pattern is not assigned to a slot; wrap it in d1(...) through d%d(...)", slots.Count)
	}
	return nil, usageError("expected a slot assignment or control call, got a %s", typeName(v))
}

type statement struct {
	text string
	line int
}

func splitStatements(text string) []statement {
	var out []statement
	for i, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(lang.StripComment(raw))
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ".") && len(out) > 0 {
			out[len(out)-1].text += trimmed
			continue
		}
		out = append(out, statement{text: trimmed, line: i + 1})
	}
	return out
}
