// ABOUTME: Posts call notifications to Slack through an incoming webhook
// ABOUTME: Admissions carry gate details as attachment fields

package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Slack posts to an incoming webhook.
type Slack struct {
	webhookURL string
	channel    string
}

// NewSlack creates a Slack notifier. channel may be empty to use the webhook default.
func NewSlack(webhookURL, channel string) *Slack {
	return &Slack{webhookURL: webhookURL, channel: channel}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Notify(ctx context.Context, evt Event) error {
	msg := &slack.WebhookMessage{
		Channel: s.channel,
		Text:    evt.Text(),
	}
	if evt.Kind == KindAdmitted {
		call := evt.Session.Event
		msg.Attachments = []slack.Attachment{{
			Color: "warning",
			Fields: []slack.AttachmentField{
				{Title: "Gate", Value: call.Label(), Short: true},
				{Title: "Location", Value: call.Location.Name, Short: true},
				{Title: "Photo in", Value: call.PhotoInOrPlaceholder(), Short: true},
				{Title: "Photo out", Value: call.PhotoOutOrPlaceholder(), Short: true},
			},
		}}
	}
	if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	return nil
}
