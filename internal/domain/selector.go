package domain

import (
	"fmt"
	"time"
)

// SelectorKind discriminates the recipient-selection union.
type SelectorKind string

const (
	SelectAll     SelectorKind = "all"
	SelectIDs     SelectorKind = "ids"
	SelectSegment SelectorKind = "segment"
)

// Segment kinds understood by the resolver.
const (
	SegmentRegisteredBefore   = "registered_before"
	SegmentRegisteredAfter    = "registered_after"
	SegmentNoCompletedBooking = "no_completed_booking"
)

// Segment date parameter, RFC3339.
const SegmentParamDate = "date"

// Selector describes which recipients a campaign targets. It is resolved
// once per run; mid-run changes to the underlying tables are not picked up.
type Selector struct {
	Kind          SelectorKind      `json:"kind"`
	RecipientIDs  []int64           `json:"recipient_ids,omitempty"`
	Segment       string            `json:"segment,omitempty"`
	SegmentParams map[string]string `json:"segment_params,omitempty"`
}

// SelectorError reports invalid recipient-selection input. It is raised
// before any dispatch work begins.
type SelectorError struct {
	Reason string
}

func (e *SelectorError) Error() string {
	return "invalid recipient selector: " + e.Reason
}

// Validate checks the selector's shape without touching the store.
func (s Selector) Validate() error {
	switch s.Kind {
	case SelectAll:
		return nil
	case SelectIDs:
		if len(s.RecipientIDs) == 0 {
			return &SelectorError{Reason: "ids selector requires at least one recipient id"}
		}
		return nil
	case SelectSegment:
		return s.validateSegment()
	default:
		return &SelectorError{Reason: fmt.Sprintf("unknown selector kind %q", s.Kind)}
	}
}

func (s Selector) validateSegment() error {
	switch s.Segment {
	case SegmentRegisteredBefore, SegmentRegisteredAfter:
		raw, ok := s.SegmentParams[SegmentParamDate]
		if !ok {
			return &SelectorError{Reason: fmt.Sprintf("segment %q requires a %q parameter", s.Segment, SegmentParamDate)}
		}
		if _, err := time.Parse(time.RFC3339, raw); err != nil {
			return &SelectorError{Reason: fmt.Sprintf("segment %q: bad date %q", s.Segment, raw)}
		}
		return nil
	case SegmentNoCompletedBooking:
		return nil
	case "":
		return &SelectorError{Reason: "segment selector requires a segment kind"}
	default:
		return &SelectorError{Reason: fmt.Sprintf("unknown segment %q", s.Segment)}
	}
}

// Date returns the parsed date parameter. Validate must have passed.
func (s Selector) Date() time.Time {
	t, _ := time.Parse(time.RFC3339, s.SegmentParams[SegmentParamDate])
	return t
}
