// ABOUTME: Posts call notifications to a Matrix room via mautrix
// ABOUTME: Uses an access token; no sync loop or encryption

package notify

import (
	"context"
	"fmt"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// Matrix sends one text message per event to a single room.
type Matrix struct {
	client *mautrix.Client
	roomID id.RoomID
}

// NewMatrix creates a Matrix notifier for roomID.
func NewMatrix(homeserver, userID, accessToken, roomID string) (*Matrix, error) {
	client, err := mautrix.NewClient(homeserver, id.UserID(userID), accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	return &Matrix{client: client, roomID: id.RoomID(roomID)}, nil
}

func (m *Matrix) Name() string { return "matrix" }

func (m *Matrix) Notify(ctx context.Context, evt Event) error {
	if _, err := m.client.SendText(ctx, m.roomID, evt.Text()); err != nil {
		return fmt.Errorf("sending to %s: %w", m.roomID, err)
	}
	return nil
}
