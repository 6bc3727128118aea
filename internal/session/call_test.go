// ABOUTME: Tests for call event helpers
// ABOUTME: Covers media placeholders, labels, fingerprints and status names

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallEvent_MissingMediaDegradesToPlaceholder(t *testing.T) {
	evt := CallEvent{GateID: "G1", PhotoIn: "in.jpg"}

	assert.Equal(t, "in.jpg", evt.PhotoInOrPlaceholder())
	assert.Equal(t, MediaPlaceholder, evt.PhotoOutOrPlaceholder())
	assert.Equal(t, MediaPlaceholder, evt.CaptureOrPlaceholder())
}

func TestCallEvent_Label(t *testing.T) {
	assert.Equal(t, "North Entry", CallEvent{GateID: "G1", Gate: "North Entry"}.Label())
	assert.Equal(t, "G1", CallEvent{GateID: "G1"}.Label())
	assert.Equal(t, MediaPlaceholder, CallEvent{}.Label())
}

func TestCallEvent_FingerprintIgnoresDisplayFields(t *testing.T) {
	a := CallEvent{GateID: "G1", Gate: "North", Capture: "c.jpg"}
	b := CallEvent{GateID: "G1", Gate: "North Entry", Location: Location{Name: "Lot A"}, Capture: "c.jpg"}
	c := CallEvent{GateID: "G1", Capture: "c2.jpg"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "active", StatusActive.String())
	assert.Equal(t, "resolving", StatusResolving.String())
	assert.Equal(t, "idle", Status(0).String())
}
