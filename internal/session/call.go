// ABOUTME: Call event and session types owned by the coordinator.
// ABOUTME: Includes media placeholders and the re-raise fingerprint.

package session

import (
	"time"

	"github.com/2389/gate-console/internal/dedupe"
)

// MediaPlaceholder stands in for a photo or capture the gate did not send.
const MediaPlaceholder = "no-image"

// Location is the denormalized gate location. Display only.
type Location struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// CallEvent is a help request raised by gate hardware.
type CallEvent struct {
	GateID   string   `json:"gateId"`
	Gate     string   `json:"gate"`
	Location Location `json:"location"`
	PhotoIn  string   `json:"photoIn,omitempty"`
	PhotoOut string   `json:"photoOut,omitempty"`
	Capture  string   `json:"capture,omitempty"`
}

// Label returns the human-readable gate name, falling back to the gate id.
func (e CallEvent) Label() string {
	if e.Gate != "" {
		return e.Gate
	}
	if e.GateID != "" {
		return e.GateID
	}
	return MediaPlaceholder
}

// PhotoInOrPlaceholder returns the entry photo reference or MediaPlaceholder.
func (e CallEvent) PhotoInOrPlaceholder() string { return orPlaceholder(e.PhotoIn) }

// PhotoOutOrPlaceholder returns the exit photo reference or MediaPlaceholder.
func (e CallEvent) PhotoOutOrPlaceholder() string { return orPlaceholder(e.PhotoOut) }

// CaptureOrPlaceholder returns the live capture reference or MediaPlaceholder.
func (e CallEvent) CaptureOrPlaceholder() string { return orPlaceholder(e.Capture) }

// Fingerprint identifies a re-raise of the same call by the same gate.
func (e CallEvent) Fingerprint() string {
	return dedupe.Fingerprint(e.GateID, e.PhotoIn, e.PhotoOut, e.Capture)
}

func orPlaceholder(ref string) string {
	if ref == "" {
		return MediaPlaceholder
	}
	return ref
}

// Status is the state of an occupied slot.
type Status int

const (
	StatusActive Status = iota + 1
	StatusResolving
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusResolving:
		return "resolving"
	default:
		return "idle"
	}
}

// Reason records which path closed a call.
type Reason string

const (
	ReasonOperator   Reason = "operator"
	ReasonActuation  Reason = "actuation"
	ReasonDisconnect Reason = "disconnect"
	// ReasonReplaced marks a call overwritten by a newer admission.
	ReasonReplaced Reason = "replaced"
)

// Session is a snapshot of the live call slot.
type Session struct {
	ID         string
	Event      CallEvent
	AdmittedAt time.Time
	Status     Status
}

// Observer is told about slot transitions. Calls arrive on the coordinator's
// loop, in transition order, and must not block.
type Observer interface {
	OnAdmitted(s Session)
	OnCleared(s Session, reason Reason)
}
