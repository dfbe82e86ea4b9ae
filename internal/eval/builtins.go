package eval

import (
	"fmt"
	"math"

	"github.com/cbegin/loopcode/internal/effects"
	"github.com/cbegin/loopcode/internal/pattern"
	"github.com/cbegin/loopcode/internal/slots"
)

// call runs a top-level function.
func (e *Evaluator) call(name string, args []value, sc *scope) (value, error) {
	if sc.pure && isControl(name) {
		return nil, usageError("%s cannot be used inside a function", name)
	}
	if slots.Index(name) > 0 {
		return e.assign(name, args)
	}
	switch name {
	case "s", "sound":
		return e.notation(name, pattern.KindSound, args)
	case "note", "n":
		return e.notation(name, pattern.KindNote, args)
	case "stack":
		ps := make([]*pattern.Pattern, 0, len(args))
		for i, a := range args {
			p, ok := a.(*pattern.Pattern)
			if !ok {
				return nil, usageError("stack argument %d is a %s, not a pattern", i+1, typeName(a))
			}
			ps = append(ps, p)
		}
		return pattern.Stack(ps...), nil
	case "silence":
		if err := arity(name, args, 0); err != nil {
			return nil, err
		}
		return silence{}, nil
	case "hush":
		if err := arity(name, args, 0); err != nil {
			return nil, err
		}
		e.registry.Hush()
		if e.onHush != nil {
			e.onHush()
		}
		return &control{message: "hushed all slots"}, nil
	case "start", "play":
		if err := e.needTransport(name); err != nil {
			return nil, err
		}
		e.transport.Start()
		return &control{message: "started"}, nil
	case "stop":
		if err := e.needTransport(name); err != nil {
			return nil, err
		}
		e.transport.Stop()
		return &control{message: "stopped"}, nil
	case "bpm", "setbpm", "setBPM", "tempo":
		if err := e.needTransport(name); err != nil {
			return nil, err
		}
		v, err := numberArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		got := e.transport.SetBPM(v)
		return &control{message: fmt.Sprintf("bpm %g", got)}, nil
	case "masterGain", "masterVolume", "volume":
		return e.masterSet(name, args, func(m Master, v float64) { m.SetVolume(v) })
	case "masterLpf", "masterLPF":
		return e.masterSet(name, args, func(m Master, v float64) { m.SetLPF(v) })
	case "masterHpf", "masterHPF":
		return e.masterSet(name, args, func(m Master, v float64) { m.SetHPF(v) })
	case "masterReverb", "masterRoom":
		return e.masterSet(name, args, func(m Master, v float64) { m.SetReverb(v) })
	case "masterDelay":
		return e.masterSet(name, args, func(m Master, v float64) { m.SetDelay(v) })
	case "masterEq", "masterEQ":
		if err := e.needMaster(name); err != nil {
			return nil, err
		}
		if err := arity(name, args, 2); err != nil {
			return nil, err
		}
		band, err := numberArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		if band < 0 || band >= effects.EQBands || band != math.Trunc(band) {
			return nil, usageError("%s band must be 0-%d, got %g", name, effects.EQBands-1, band)
		}
		db, err := numberArg(name, args, 1)
		if err != nil {
			return nil, err
		}
		e.master.SetEQ(int(band), db)
		return &control{message: fmt.Sprintf("%s(%g, %g)", name, band, db)}, nil
	case "masterComp", "masterCompressor":
		if err := e.needMaster(name); err != nil {
			return nil, err
		}
		th, err := numberArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		ratio := 4.0
		if len(args) > 1 {
			if ratio, err = numberArg(name, args, 1); err != nil {
				return nil, err
			}
		}
		e.master.SetCompressor(th, ratio)
		return &control{message: fmt.Sprintf("%s(%g, %g)", name, th, ratio)}, nil
	case "masterReset":
		if err := e.needMaster(name); err != nil {
			return nil, err
		}
		e.master.Reset()
		return &control{message: "master bus reset"}, nil
	}
	if isPatternMethod(name) {
		return e.partial(name, args)
	}
	return nil, usageError("unknown function %q", name)
}

func (e *Evaluator) notation(name string, kind pattern.Kind, args []value) (value, error) {
	if err := arity(name, args, 1); err != nil {
		return nil, err
	}
	text, err := stringArg(name, args, 0)
	if err != nil {
		return nil, err
	}
	p, err := pattern.FromNotation(kind, text, e.cycle())
	if err != nil {
		return nil, wrapUsage(err, "cannot parse %q: %v", text, err)
	}
	return p, nil
}

func (e *Evaluator) assign(slot string, args []value) (value, error) {
	if len(args) != 1 {
		return nil, usageError("%s takes one pattern or silence()", slot)
	}
	switch v := args[0].(type) {
	case *pattern.Pattern:
		if err := e.registry.Set(slot, v); err != nil {
			return nil, wrapUsage(err, "%v", err)
		}
		return &control{message: slot + " updated"}, nil
	case silence:
		removed, err := e.registry.Clear(slot)
		if err != nil {
			return nil, wrapUsage(err, "%v", err)
		}
		if !removed {
			return &control{message: slot + " already empty"}, nil
		}
		return &control{message: slot + " cleared"}, nil
	}
	return nil, usageError("%s expects a pattern or silence(), got a %s", slot, typeName(args[0]))
}

func (e *Evaluator) masterSet(name string, args []value, set func(Master, float64)) (value, error) {
	if err := e.needMaster(name); err != nil {
		return nil, err
	}
	if err := arity(name, args, 1); err != nil {
		return nil, err
	}
	v, err := numberArg(name, args, 0)
	if err != nil {
		return nil, err
	}
	set(e.master, v)
	return &control{message: fmt.Sprintf("%s(%g)", name, v)}, nil
}

func (e *Evaluator) needTransport(name string) error {
	if e.transport == nil {
		return usageError("%s is not available without a scheduler", name)
	}
	return nil
}

func (e *Evaluator) needMaster(name string) error {
	if e.master == nil {
		return usageError("%s is not available without a master bus", name)
	}
	return nil
}

func isControl(name string) bool {
	if slots.Index(name) > 0 {
		return true
	}
	switch name {
	case "hush", "start", "play", "stop", "bpm", "setbpm", "setBPM", "tempo",
		"masterGain", "masterVolume", "volume", "masterLpf", "masterLPF",
		"masterHpf", "masterHPF", "masterReverb", "masterRoom", "masterDelay",
		"masterComp", "masterCompressor", "masterEq", "masterEQ", "masterReset":
		return true
	}
	return false
}

func isPatternMethod(name string) bool {
	switch name {
	case "fast", "slow", "rev", "every", "sometimes", "rarely", "often",
		"gain", "room", "delay", "pan", "lpf", "hpf", "shape", "chorus", "synth":
		return true
	}
	return false
}

// patternMethod applies a combinator or effect setter to p.
func (e *Evaluator) patternMethod(p *pattern.Pattern, name string, args []value, rng pattern.RandomSource) (*pattern.Pattern, error) {
	switch name {
	case "fast", "slow":
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		f, err := numberArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, usageError("%s factor must be positive, got %g", name, f)
		}
		if name == "fast" {
			return p.Fast(f), nil
		}
		return p.Slow(f), nil
	case "rev":
		if err := arity(name, args, 0); err != nil {
			return nil, err
		}
		return p.Rev(), nil
	case "every":
		if err := arity(name, args, 2); err != nil {
			return nil, err
		}
		n, err := numberArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		if n < 1 || n != math.Trunc(n) {
			return nil, usageError("every needs a positive whole number, got %g", n)
		}
		t, err := e.toTransform(args[1])
		if err != nil {
			return nil, err
		}
		return p.Every(int(n), t.fn), nil
	case "sometimes", "rarely", "often":
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		t, err := e.toTransform(args[0])
		if err != nil {
			return nil, err
		}
		switch name {
		case "sometimes":
			return p.Sometimes(rng, t.fn), nil
		case "rarely":
			return p.Rarely(rng, t.fn), nil
		}
		return p.Often(rng, t.fn), nil
	case "s", "synth":
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		synth, err := stringArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		return p.S(synth), nil
	}
	if err := arity(name, args, 1); err != nil {
		return nil, err
	}
	v, err := numberArg(name, args, 0)
	if err != nil {
		return nil, err
	}
	switch name {
	case "gain":
		return p.Gain(v), nil
	case "room":
		return p.Room(v), nil
	case "delay":
		return p.Delay(v), nil
	case "pan":
		return p.Pan(v), nil
	case "lpf":
		return p.LPF(v), nil
	case "hpf":
		return p.HPF(v), nil
	case "shape":
		return p.Shape(v), nil
	case "chorus":
		return p.Chorus(v), nil
	}
	return nil, usageError("unknown pattern method %q", name)
}
