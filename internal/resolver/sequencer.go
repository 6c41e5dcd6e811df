package resolver

import (
	"github.com/openhood/bannerd/internal/urlutil"
)

// State is the resolution state of a single media reference.
type State int

const (
	// StateResolving means a candidate is pending verification.
	StateResolving State = iota
	// StateLoaded is terminal: a candidate verified successfully.
	StateLoaded
	// StateExhausted is terminal: every candidate failed and the
	// placeholder is in effect.
	StateExhausted
)

// MarshalText implements encoding.TextMarshaler so states serialize as
// their names in JSON responses.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateLoaded:
		return "loaded"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Sequencer walks the fallback cascade for one media reference. Candidates
// are emitted in a fixed priority order: the normalized reference first, then
// the direct endpoint, each proxy bucket, the static uploads path, and
// finally the placeholder. Already-tried candidates are skipped, and the
// number of fallback hops is capped.
//
// A Sequencer is not safe for concurrent use; each media reference gets its
// own instance. The shared Tracker carries tried state across instances for
// the same reference, so recreating a Sequencer does not restart the loop.
type Sequencer struct {
	opts       Options
	normalizer *Normalizer
	tracker    Tracker

	reference string
	current   string
	state     State
}

// NewSequencer creates a Sequencer for the given media reference. The
// tracker is consulted immediately: candidates already tried for this
// reference are skipped, so a fresh Sequencer resumes where a previous one
// for the same reference left off.
func NewSequencer(reference string, normalizer *Normalizer, tracker Tracker, opts Options) *Sequencer {
	s := &Sequencer{
		opts:       opts.normalized(),
		normalizer: normalizer,
		tracker:    tracker,
		reference:  reference,
	}
	s.start()
	return s
}

func (s *Sequencer) start() {
	first := s.normalizer.Normalize(s.reference)
	if first == "" {
		// nothing to resolve, settle on the placeholder immediately
		s.current = s.opts.PlaceholderPath
		s.state = StateExhausted
		return
	}

	if s.tracker.Attempts(s.reference) >= s.opts.AttemptCap {
		s.current = s.opts.PlaceholderPath
		s.state = StateExhausted
		return
	}

	if s.tracker.Tried(s.reference, first) {
		s.state = StateResolving
		s.advance()
		return
	}

	s.current = first
	s.state = StateResolving
}

// Reference returns the original media reference.
func (s *Sequencer) Reference() string {
	return s.reference
}

// Current returns the candidate URL currently in effect. In the Exhausted
// state this is the placeholder path.
func (s *Sequencer) Current() string {
	return s.current
}

// State returns the current resolution state.
func (s *Sequencer) State() State {
	return s.state
}

// Attempts returns the number of fallback hops taken for this reference.
func (s *Sequencer) Attempts() int {
	return s.tracker.Attempts(s.reference)
}

// RecordSuccess marks the current candidate as verified. Tried state for the
// reference is discarded since resolution is settled.
func (s *Sequencer) RecordSuccess() {
	if s.state != StateResolving {
		return
	}
	s.state = StateLoaded
	s.tracker.Reset(s.reference)
}

// RecordFailure marks the current candidate as failed and advances to the
// next untried candidate in priority order. When the attempt cap is reached
// or no untried candidate remains, the sequencer settles on the placeholder
// in the Exhausted state.
func (s *Sequencer) RecordFailure() {
	if s.state != StateResolving {
		return
	}

	s.tracker.MarkTried(s.reference, s.current)

	if s.tracker.Attempts(s.reference) >= s.opts.AttemptCap {
		s.current = s.opts.PlaceholderPath
		s.state = StateExhausted
		return
	}

	s.tracker.IncrementAttempts(s.reference)
	s.advance()
}

// advance selects the next untried candidate, or settles on the placeholder.
func (s *Sequencer) advance() {
	for _, candidate := range s.candidates() {
		if candidate == "" || s.tracker.Tried(s.reference, candidate) {
			continue
		}
		s.current = candidate
		return
	}

	s.current = s.opts.PlaceholderPath
	s.state = StateExhausted
}

// candidates builds the fixed priority list of fallback candidates for the
// reference. Order is deterministic: direct endpoint, proxy buckets in
// configured order, then static uploads.
func (s *Sequencer) candidates() []string {
	name := s.filename()
	if name == "" {
		return nil
	}

	list := make([]string, 0, len(s.opts.Buckets)+2)
	list = append(list, s.opts.DirectEndpoint+"/"+name)
	for _, bucket := range s.opts.Buckets {
		list = append(list, s.opts.ProxyPrefix+"/"+bucket+"/"+name)
	}
	list = append(list, s.opts.UploadsPath+"/"+name)
	return list
}

// filename extracts the bare media filename from the reference, falling back
// to the current candidate when the reference itself has no usable segment.
func (s *Sequencer) filename() string {
	if name := urlutil.FileNameFromURL(s.reference); name != "" {
		return name
	}
	return urlutil.FileNameFromURL(s.current)
}

// Restart clears tried state for the reference and begins again at the
// normalized candidate. Used for user-triggered manual retries.
func (s *Sequencer) Restart() {
	s.tracker.Reset(s.reference)
	s.start()
}
