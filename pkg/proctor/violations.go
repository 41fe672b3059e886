package proctor

import (
	"encoding/json"
	"strings"
)

// Violation message texts. The text is the identity used for edge triggering.
const (
	MsgNoFace            = "No face detected"
	MsgMultipleFaces     = "Multiple faces detected"
	MsgHeadTurnedAway    = "Head Turned Away (Sustained)"
	msgSuspiciousObjects = "Suspicious object(s): "
	msgGazePrefix        = "Gaze Violation: Looking "
)

// SuspiciousObjectsMessage returns the combined violation text for labels
func SuspiciousObjectsMessage(labels []string) string {
	return msgSuspiciousObjects + strings.Join(labels, ", ")
}

// GazeMessage returns the dwell violation text for a region label
func GazeMessage(label string) string {
	return msgGazePrefix + label
}

// ViolationSet is an insertion-ordered set of distinct violation messages.
// The zero value is an empty set ready to use.
type ViolationSet struct {
	order []string
	index map[string]struct{}
}

// NewViolationSet builds a set from messages, dropping duplicates
func NewViolationSet(msgs ...string) ViolationSet {
	var s ViolationSet
	for _, m := range msgs {
		s.Add(m)
	}
	return s
}

// Add inserts msg if it is not already present
func (s *ViolationSet) Add(msg string) {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[msg]; ok {
		return
	}
	s.index[msg] = struct{}{}
	s.order = append(s.order, msg)
}

// Has reports whether msg is in the set
func (s ViolationSet) Has(msg string) bool {
	_, ok := s.index[msg]
	return ok
}

// Len returns the number of messages
func (s ViolationSet) Len() int {
	return len(s.order)
}

// Empty reports whether the set has no messages
func (s ViolationSet) Empty() bool {
	return len(s.order) == 0
}

// Messages returns the messages in insertion order
func (s ViolationSet) Messages() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Difference returns the messages of s that are not in other, keeping s's order.
func (s ViolationSet) Difference(other ViolationSet) ViolationSet {
	var out ViolationSet
	for _, m := range s.order {
		if !other.Has(m) {
			out.Add(m)
		}
	}
	return out
}

// MarshalJSON encodes the set as a string array
func (s ViolationSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Messages())
}

// UnmarshalJSON decodes a string array
func (s *ViolationSet) UnmarshalJSON(data []byte) error {
	var msgs []string
	if err := json.Unmarshal(data, &msgs); err != nil {
		return err
	}
	*s = NewViolationSet(msgs...)
	return nil
}

// ViolationKind classifies a message for metrics and dashboards
func ViolationKind(msg string) string {
	switch {
	case msg == MsgNoFace:
		return "no_face"
	case msg == MsgMultipleFaces:
		return "multiple_faces"
	case msg == MsgHeadTurnedAway:
		return "head_pose"
	case strings.HasPrefix(msg, msgSuspiciousObjects):
		return "object"
	case strings.HasPrefix(msg, msgGazePrefix):
		return "gaze"
	default:
		return "other"
	}
}
