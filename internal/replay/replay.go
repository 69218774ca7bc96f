// Package replay records a node's initial state and the ordered action log
// that drove it, then plays that log back against a fresh store. Recorded
// non-deterministic results (verifier outcomes, RPC replies) are re-injected
// from the log rather than recomputed, since recomputing verifier timing
// during playback would not reproduce the original run (spec §9 Open
// Questions).
//
// The wire format mirrors the layout the original project's replayer reads:
// one initial-state record followed by a sequence of length-prefixed action
// records in a single file, rather than protobuf — as with internal/rpc,
// there is no protobuf schema for action payloads in this repository, and
// gob already carries the node's interface-typed Action values without one.
package replay

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"time"

	"mina-core/internal/action"
)

// Decision is returned by a StepFunc to control playback pacing, mirroring
// the original project's dynamic-effects hook (CONTINUE/PAUSE) used to
// single-step a replay under a debugger.
type Decision uint8

const (
	// Continue advances immediately to the next recorded action.
	Continue Decision = iota
	// Pause halts playback after applying the current action; calling Run
	// again on the same Player continues from where it paused.
	Pause
)

// StepFunc is invoked by Player after every replayed action is dispatched.
type StepFunc func(a action.Action, meta action.Meta) Decision

// record is the on-disk shape of one logged action: the concrete type name
// gob.Register'd by the caller, carried through gob's interface encoding.
type record struct {
	Meta action.Meta
	Act  action.Action
}

// Recorder appends actions to a log file as they're dispatched, alongside a
// one-time initial-state snapshot. Concrete action and state types must be
// registered with gob.Register by the caller before recording, the same
// requirement gob places on any interface-typed encode/decode.
type Recorder struct {
	f   *os.File
	enc *gob.Encoder
}

// NewRecorder creates (or truncates) the log file at path and writes the
// initial state as its first record.
func NewRecorder(path string, initial any) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("replay: create log: %w", err)
	}
	r := &Recorder{f: f, enc: gob.NewEncoder(f)}
	if err := r.writeFrame(initial); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Record appends one dispatched action and its metadata to the log.
func (r *Recorder) Record(a action.Action, meta action.Meta) error {
	return r.writeFrame(record{Meta: meta, Act: a})
}

func (r *Recorder) writeFrame(v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("replay: encode frame: %w", err)
	}
	var lenBytes [8]byte
	binary.BigEndian.PutUint64(lenBytes[:], uint64(buf.Len()))
	if _, err := r.f.Write(lenBytes[:]); err != nil {
		return fmt.Errorf("replay: write frame length: %w", err)
	}
	if _, err := r.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("replay: write frame: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying log file.
func (r *Recorder) Close() error { return r.f.Close() }

// Player reads a log written by Recorder and replays its actions in order
// against a dispatch function supplied by the caller (typically a
// store.Store[S].Dispatch bound to a freshly constructed root state).
type Player struct {
	f                *os.File
	br               *bufio.Reader
	initialMonotonic time.Time
	initialTime      time.Time
	haveInitialTime  bool
}

// OpenPlayer opens path and decodes its initial-state record into initial
// (a pointer to the caller's state type, registered with gob beforehand).
func OpenPlayer(path string, initial any) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open log: %w", err)
	}
	br := bufio.NewReader(f)
	data, err := readFrame(br)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("replay: read initial state: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(initial); err != nil {
		f.Close()
		return nil, fmt.Errorf("replay: decode initial state: %w", err)
	}
	return &Player{f: f, br: br, initialMonotonic: time.Now()}, nil
}

func readFrame(br *bufio.Reader) ([]byte, error) {
	var lenBytes [8]byte
	if _, err := io.ReadFull(br, lenBytes[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint64(lenBytes[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Next decodes the next recorded action, or returns io.EOF once the log is
// exhausted.
func (p *Player) Next() (action.Action, action.Meta, error) {
	data, err := readFrame(p.br)
	if err != nil {
		return nil, action.Meta{}, err
	}
	var rec record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, action.Meta{}, fmt.Errorf("replay: decode action record: %w", err)
	}
	if !p.haveInitialTime {
		p.initialTime = rec.Meta.Time
		p.haveInitialTime = true
	}
	return rec.Act, rec.Meta, nil
}

// NextDeadline computes the wall-clock instant the next recorded action
// should be replayed at, preserving the original inter-action timing: the
// gap between this run's start and the recorded action equals the gap
// between the log's first action and this one.
func (p *Player) NextDeadline(meta action.Meta) time.Time {
	if !p.haveInitialTime {
		return p.initialMonotonic
	}
	return p.initialMonotonic.Add(meta.Time.Sub(p.initialTime))
}

// Close releases the underlying log file.
func (p *Player) Close() error { return p.f.Close() }

// ErrPaused is returned by Run when step returns Pause, so a caller driving
// an interactive replay session can stop there and resume later by calling
// Run again on the same Player — the log position is the player's own read
// cursor, so no separate bookmark is needed.
var ErrPaused = fmt.Errorf("replay: paused")

// Run drives dispatch over recorded actions in order, calling step after
// each one so callers can pause between actions (e.g. to inspect state in a
// debugger) the way the original project's dynamic-effects hook does. Run
// stops and returns nil at the end of the log, returns ErrPaused when step
// requests a pause, or returns the first read or decode error encountered.
// The boolean result of dispatch is ignored.
func Run(p *Player, dispatch func(action.Action) bool, step StepFunc) error {
	for {
		act, meta, err := p.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		dispatch(act)
		if step != nil && step(act, meta) == Pause {
			return ErrPaused
		}
	}
}
