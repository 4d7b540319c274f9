// Package services implements the marketplace domain: registration, the
// listing wizard, moderation, the buyer/seller chat relay and broadcasts.
// Services talk to Telegram only through the Gateway contract so they can be
// tested against a fake.
package services

import "context"

// Button describes one inline button attached to an outbound message.
// Action and Data map to a callback key and its payload.
type Button struct {
	Text   string
	Action string
	Data   string
}

// MessageRef identifies a delivered message for later edits.
type MessageRef struct {
	ChatID    int64
	MessageID string
}

// Gateway is the outbound messaging contract services depend on. Rows of
// buttons become an inline keyboard; an empty rows slice means no keyboard.
type Gateway interface {
	Send(ctx context.Context, recipientID int64, text string, rows ...[]Button) (MessageRef, error)
	SendPhoto(ctx context.Context, recipientID int64, photoURL, caption string, rows ...[]Button) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string) error
	// ClearButtons removes the inline keyboard from a delivered message,
	// leaving its text in place.
	ClearButtons(ctx context.Context, ref MessageRef) error
	// MediaURL resolves a transport media reference to a downloadable URL.
	MediaURL(ctx context.Context, fileID string) (string, error)
}
