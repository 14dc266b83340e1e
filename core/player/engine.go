// Package player implements the playback engine: a state machine over one
// audio source with seek clamping and a single optional A/B loop region.
package player

import (
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle state of the engine's source.
type State string

const (
	StateIdle    State = "idle"    // no source loaded
	StateLoading State = "loading" // source assigned, duration pending
	StateReady   State = "ready"   // duration known, paused
	StatePlaying State = "playing"
	StateErrored State = "errored" // terminal until the source is reassigned
)

// DefaultSkipStep is the relative seek step in seconds.
const DefaultSkipStep = 10.0

var (
	// ErrInvalidLoopRegion rejects a region whose span is not positive or
	// that falls outside [0, duration].
	ErrInvalidLoopRegion = errors.New("loop region must satisfy 0 <= start < end <= duration")
	// ErrNoMarkA rejects mark-B before mark-A.
	ErrNoMarkA = errors.New("mark B requires a pending mark A")
	// ErrNotReady rejects loop marks while no source is ready.
	ErrNotReady = errors.New("no source is ready")
)

// LoopRegion is a [start, end] window within which playback repeats.
// Transient session state, never persisted.
type LoopRegion struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Snapshot is the observable engine state.
type Snapshot struct {
	State       State       `json:"state"`
	URL         string      `json:"url"`
	FileName    string      `json:"fileName"`
	CurrentTime float64     `json:"currentTime"`
	Duration    float64     `json:"duration"`
	Playing     bool        `json:"playing"`
	Looping     bool        `json:"looping"`
	Loop        *LoopRegion `json:"loop,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Engine drives play/pause/seek and the loop region for one audio source.
// All methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	state    State
	url      string
	fileName string
	current  float64
	duration float64
	loop     *LoopRegion
	markA    *float64
	err      error
	skipStep float64
}

// NewEngine returns an idle engine.
func NewEngine() *Engine {
	return &Engine{state: StateIdle, skipStep: DefaultSkipStep}
}

// Load assigns a new source. All transient state is reset synchronously so
// nothing from a previous song leaks into the new one.
func (e *Engine) Load(url, fileName string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.url = url
	e.fileName = fileName
	e.current = 0
	e.duration = 0
	e.loop = nil
	e.markA = nil
	e.err = nil
	e.state = StateLoading
}

// SourceReady completes loading: the duration is known, playback is paused.
func (e *Engine) SourceReady(duration float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateLoading {
		return fmt.Errorf("source ready in state %s", e.state)
	}
	if duration <= 0 {
		e.err = fmt.Errorf("non-positive duration %v", duration)
		e.state = StateErrored
		return e.err
	}
	e.duration = duration
	e.state = StateReady
	return nil
}

// SourceFailed moves the engine to the terminal errored state. Controls
// become inert; only reassigning the source recovers.
func (e *Engine) SourceFailed(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.err = err
	e.state = StateErrored
}

// Play starts playback. Calling it while already playing is a no-op, and it
// is inert unless a source is ready.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateReady {
		e.state = StatePlaying
	}
}

// Pause pauses playback. Idempotent.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StatePlaying {
		e.state = StateReady
	}
}

// Seek jumps to target seconds, clamped to [0, duration]. A seek is allowed
// to land anywhere; loop re-clamping happens on playback ticks.
func (e *Engine) Seek(target float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady && e.state != StatePlaying {
		return
	}
	e.current = clamp(target, 0, e.duration)
}

// SkipForward seeks relative by the default step.
func (e *Engine) SkipForward() {
	e.skipBy(e.skipStep)
}

// SkipBackward seeks relative by the default step.
func (e *Engine) SkipBackward() {
	e.skipBy(-e.skipStep)
}

// SkipBy seeks relative by delta seconds, clamped to [0, duration].
func (e *Engine) SkipBy(delta float64) {
	e.skipBy(delta)
}

func (e *Engine) skipBy(delta float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady && e.state != StatePlaying {
		return
	}
	e.current = clamp(e.current+delta, 0, e.duration)
}

// Advance is the playback-time tick: the media clock reports its position.
// The loop check runs on every tick, not just at boundaries, so coarse
// timing events still snap back correctly.
func (e *Engine) Advance(position float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying {
		return
	}

	position = clamp(position, 0, e.duration)

	if e.loop != nil && position >= e.loop.End {
		e.current = e.loop.Start
		return
	}

	e.current = position

	// Natural end pauses at the final position.
	if e.loop == nil && position >= e.duration {
		e.state = StateReady
	}
}

// SetLoopRegion installs a loop region, replacing any prior one atomically.
// This is the single validation funnel for both input mechanisms: a drag
// gesture supplies start/end directly, the A/B marks arrive via MarkA/MarkB.
func (e *Engine) SetLoopRegion(start, end float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.setLoopLocked(start, end)
}

func (e *Engine) setLoopLocked(start, end float64) error {
	if e.state != StateReady && e.state != StatePlaying {
		return ErrNotReady
	}
	if start < 0 || end > e.duration || end-start <= 0 {
		return ErrInvalidLoopRegion
	}
	e.loop = &LoopRegion{Start: start, End: end}
	e.markA = nil
	return nil
}

// MarkA captures the current position as the pending loop start.
func (e *Engine) MarkA() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady && e.state != StatePlaying {
		return ErrNotReady
	}
	pos := e.current
	e.markA = &pos
	return nil
}

// MarkB captures the current position as the loop end and activates the
// region. Rejected with no state change unless it lands after mark A.
func (e *Engine) MarkB() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReady && e.state != StatePlaying {
		return ErrNotReady
	}
	if e.markA == nil {
		return ErrNoMarkA
	}
	return e.setLoopLocked(*e.markA, e.current)
}

// ClearLoop removes the region. Playback continues unaffected.
func (e *Engine) ClearLoop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.loop = nil
	e.markA = nil
}

// Snapshot returns the observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State:       e.state,
		URL:         e.url,
		FileName:    e.fileName,
		CurrentTime: e.current,
		Duration:    e.duration,
		Playing:     e.state == StatePlaying,
		Looping:     e.loop != nil,
	}
	if e.loop != nil {
		region := *e.loop
		snap.Loop = &region
	}
	if e.err != nil {
		snap.Error = e.err.Error()
	}
	return snap
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
