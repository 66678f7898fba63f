// Package session drives one search surface through its request lifecycle.
package session

import "github.com/hyperjump/boutique/internal/models"

// Phase is the lifecycle position of a search surface.
type Phase int

const (
	Idle Phase = iota
	Loading
	Success
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of a surface. Error is set only in Failed; Results keep the
// last successful response across Loading and Failed.
type State struct {
	Phase       Phase
	Results     []models.ProductResult
	Error       string
	HasSearched bool
	// Seq is the sequence number of the latest submission.
	Seq uint64
}

// IsLoading reports whether a request is outstanding.
func (s State) IsLoading() bool { return s.Phase == Loading }

// HasError reports whether the surface shows an error.
func (s State) HasError() bool { return s.Phase == Failed }

type eventKind int

const (
	evSubmit eventKind = iota
	evResolved
	evFailed
)

type event struct {
	kind    eventKind
	seq     uint64
	results []models.ProductResult
	message string
}

// transition returns the next state and whether ev was applied.
// Responses for anything but the latest submission are dropped.
func transition(s State, ev event) (State, bool) {
	switch ev.kind {
	case evSubmit:
		s.Phase = Loading
		s.Error = ""
		s.HasSearched = true
		s.Seq = ev.seq
		return s, true
	case evResolved:
		if s.Phase != Loading || ev.seq != s.Seq {
			return s, false
		}
		s.Phase = Success
		s.Results = ev.results
		if s.Results == nil {
			s.Results = []models.ProductResult{}
		}
		return s, true
	case evFailed:
		if s.Phase != Loading || ev.seq != s.Seq {
			return s, false
		}
		s.Phase = Failed
		s.Error = ev.message
		return s, true
	}
	return s, false
}
