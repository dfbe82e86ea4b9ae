package effects

import "sync/atomic"

// Stage names the kind of processing a Node performs.
type Stage string

const (
	StageGain    Stage = "gain"
	StageShape   Stage = "shape"
	StageHPF     Stage = "hpf"
	StageLPF     Stage = "lpf"
	StageChorus  Stage = "chorus"
	StageReverb  Stage = "reverb"
	StageDelay   Stage = "delay"
	StagePan     Stage = "pan"
	StageEQ      Stage = "eq"
	StageComp    Stage = "compressor"
	StageLimiter Stage = "limiter"
)

// Node is one processing stage owned by a single event chain.
type Node struct {
	Stage    Stage
	fx       Effector
	tracker  *Tracker
	released atomic.Bool
}

// Released reports whether the node has been let go.
func (n *Node) Released() bool { return n.released.Load() }

func (n *Node) release() bool {
	if !n.released.CompareAndSwap(false, true) {
		return false
	}
	n.fx = nil
	if n.tracker != nil {
		n.tracker.released.Add(1)
	}
	return true
}

// Tracker counts nodes created and released so leaks show up as a
// non-zero Live count once every chain has been disposed.
type Tracker struct {
	created  atomic.Int64
	released atomic.Int64
}

func (t *Tracker) Created() int64  { return t.created.Load() }
func (t *Tracker) Released() int64 { return t.released.Load() }
func (t *Tracker) Live() int64     { return t.created.Load() - t.released.Load() }

func (t *Tracker) newNode(stage Stage, fx Effector) *Node {
	if t != nil {
		t.created.Add(1)
	}
	return &Node{Stage: stage, fx: fx, tracker: t}
}
