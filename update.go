package wabot

import (
	"context"

	"github.com/sdiouf/wabot/pkg/clients/whatsapp"
)

// Update is the view over one dispatched message handed to handler
// callbacks. It is created by the dispatch cycle and owned by it; a callback
// may read and mutate it freely since no other goroutine aliases it.
type Update struct {
	client *Client

	// Value is the raw webhook value the message arrived in.
	Value *WebhookValue
	// Message is the raw inbound message.
	Message *Message

	// Sender is the remote party's WhatsApp identifier, used as destination
	// for replies and as the conversation key.
	Sender string
	// SenderName is the profile display name, when the payload carries one.
	SenderName string
	// MessageID threads replies back to this message.
	MessageID string

	// Extracted is the normalized projection produced by the matched handler.
	Extracted

	// Conv is the sender's conversation context. Populated only when the
	// matched handler was built with WithUserContext.
	Conv *UserContext
}

// Reply sends a text message back to the sender, threaded to the inbound
// message.
func (u *Update) Reply(ctx context.Context, text string) error {
	_, err := u.client.transport.SendText(ctx, whatsapp.SendTextRequest{
		To:      u.Sender,
		Body:    text,
		ReplyTo: u.MessageID,
	})
	return err
}

// ReplyMarkup sends an interactive message (buttons, list or location
// request) back to the sender, threaded to the inbound message.
func (u *Update) ReplyMarkup(ctx context.Context, body string, markup *ReplyMarkup, opts ...SendOption) error {
	return u.client.SendMarkup(ctx, u.Sender, body, markup, append(opts, replyTo(u.MessageID))...)
}

// ReplyMedia sends a media message back to the sender. MediaRef is a remote
// link or an uploaded media id.
func (u *Update) ReplyMedia(ctx context.Context, kind, mediaRef, caption string) error {
	_, err := u.client.transport.SendMedia(ctx, whatsapp.SendMediaRequest{
		To:       u.Sender,
		Kind:     kind,
		MediaRef: mediaRef,
		Caption:  caption,
		ReplyTo:  u.MessageID,
	})
	return err
}

// ReplyLocation sends a location back to the sender.
func (u *Update) ReplyLocation(ctx context.Context, lat, long float64, name, address string) error {
	_, err := u.client.transport.SendLocation(ctx, whatsapp.SendLocationRequest{
		To:        u.Sender,
		Latitude:  lat,
		Longitude: long,
		Name:      name,
		Address:   address,
		ReplyTo:   u.MessageID,
	})
	return err
}

// DownloadMedia resolves the update's media id and fetches the content into
// memory. Valid only for media messages.
func (u *Update) DownloadMedia(ctx context.Context) ([]byte, error) {
	info, err := u.client.transport.GetMedia(ctx, u.MediaID)
	if err != nil {
		return nil, err
	}
	return u.client.transport.DownloadMedia(ctx, info.URL)
}

// DownloadMediaTo resolves the update's media id and streams the content to
// a file on disk. Valid only for media messages.
func (u *Update) DownloadMediaTo(ctx context.Context, path string) error {
	info, err := u.client.transport.GetMedia(ctx, u.MediaID)
	if err != nil {
		return err
	}
	return u.client.transport.DownloadMediaTo(ctx, info.URL, path)
}
