package wabot

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/sdiouf/wabot/pkg/clients/whatsapp"
)

// Config holds the credentials and behavior switches for a bot client.
type Config struct {
	// NumberID is the Cloud API phone number id the bot answers for.
	// Payloads addressed to any other number are dropped.
	NumberID string
	// Token is the Cloud API bearer token.
	Token string
	// MarkAsRead sends a best-effort read receipt for every routed message.
	MarkAsRead bool
	// APIVersion overrides the Graph API version (default v20.0).
	APIVersion string
	// BaseURL overrides the Graph API endpoint. Useful for tests.
	BaseURL string
	// Timeout bounds every outbound HTTP request (default 30s).
	Timeout time.Duration
	// Logger receives structured dispatch and transport logs. Nil disables
	// logging.
	Logger *zap.Logger
}

// ClientOption customizes a Client beyond its Config.
type ClientOption func(*Client)

// WithTransport replaces the Cloud API transport. Intended for tests and
// custom instrumentation.
func WithTransport(t whatsapp.Client) ClientOption {
	return func(c *Client) { c.transport = t }
}

// WithContextStore supplies an externally owned conversation store, letting
// several clients share conversation state or tests inject a fresh one.
func WithContextStore(store *ContextStore) ClientOption {
	return func(c *Client) { c.store = store }
}

// WithErrorHandler installs a hook invoked whenever a handler callback
// returns an error or panics. The queue keeps draining either way.
func WithErrorHandler(fn ErrorHandler) ClientOption {
	return func(c *Client) { c.errorHandler = fn }
}

// Client is the façade over the dispatcher, the conversation store and the
// Cloud API transport. Register handlers, then feed webhook payloads to
// ProcessUpdate or ProcessUpdateJSON.
type Client struct {
	cfg          Config
	logger       *zap.Logger
	transport    whatsapp.Client
	store        *ContextStore
	errorHandler ErrorHandler
	disp         *dispatcher
}

// New builds a Client from the configuration.
func New(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.NumberID == "" {
		return nil, errors.New("wabot: NumberID must be provided")
	}
	if cfg.Token == "" {
		return nil, errors.New("wabot: Token must be provided")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = whatsapp.NewClient(whatsapp.Config{
			AccessToken:   cfg.Token,
			PhoneNumberID: cfg.NumberID,
			BaseURL:       cfg.BaseURL,
			APIVersion:    cfg.APIVersion,
			Timeout:       cfg.Timeout,
		})
	}
	if c.store == nil {
		c.store = NewContextStore()
	}

	c.disp = newDispatcher(c, c.store, logger.Named("dispatch"))
	c.disp.onError = c.errorHandler
	return c, nil
}

// Store exposes the conversation store owned by this client.
func (c *Client) Store() *ContextStore { return c.store }

// Transport exposes the underlying Cloud API client for operations the
// façade does not wrap.
func (c *Client) Transport() whatsapp.Client { return c.transport }

// ProcessUpdate submits a parsed webhook payload for dispatch. It returns
// after the payload, and anything queued ahead of it, has been fully
// processed. Malformed payloads are dropped silently.
func (c *Client) ProcessUpdate(ctx context.Context, payload *WebhookPayload) error {
	return c.disp.process(ctx, payload)
}

// ProcessUpdateJSON submits a raw webhook delivery. Bytes that do not carry
// the webhook envelope are dropped silently.
func (c *Client) ProcessUpdateJSON(ctx context.Context, raw []byte) error {
	return c.disp.processJSON(ctx, raw)
}

// Submit enqueues a payload without waiting for it to be processed. Use this
// instead of ProcessUpdate inside a handler callback: waiting there would
// block the drain loop on itself.
func (c *Client) Submit(payload *WebhookPayload) { c.disp.submit(payload) }

// QueueStatus reports the size of the delivery queue and whether a drain is
// in progress.
func (c *Client) QueueStatus() QueueStatus { return c.disp.status() }

// RegisterHandler appends a pre-built handler and returns its registration
// position.
func (c *Client) RegisterHandler(h *Handler) int { return c.disp.register(h) }

// RemoveAllHandlers unregisters every handler. Intended for tests.
func (c *Client) RemoveAllHandlers() { c.disp.removeAllHandlers() }

// OnMessage registers a handler for plain text messages.
func (c *Client) OnMessage(cb HandlerFunc, opts ...HandlerOption) int {
	return c.RegisterHandler(NewTextHandler(cb, opts...))
}

// OnInteractiveMessage registers a handler for button and list replies.
func (c *Client) OnInteractiveMessage(cb HandlerFunc, opts ...HandlerOption) int {
	return c.RegisterHandler(NewInteractiveHandler(cb, opts...))
}

// OnImageMessage registers a handler for image messages.
func (c *Client) OnImageMessage(cb HandlerFunc, opts ...HandlerOption) int {
	return c.RegisterHandler(NewImageHandler(cb, opts...))
}

// OnAudioMessage registers a handler for audio messages and voice notes.
func (c *Client) OnAudioMessage(cb HandlerFunc, opts ...HandlerOption) int {
	return c.RegisterHandler(NewAudioHandler(cb, opts...))
}

// OnVideoMessage registers a handler for video messages.
func (c *Client) OnVideoMessage(cb HandlerFunc, opts ...HandlerOption) int {
	return c.RegisterHandler(NewVideoHandler(cb, opts...))
}

// OnDocumentMessage registers a handler for document messages.
func (c *Client) OnDocumentMessage(cb HandlerFunc, opts ...HandlerOption) int {
	return c.RegisterHandler(NewDocumentHandler(cb, opts...))
}

// OnStickerMessage registers a handler for sticker messages.
func (c *Client) OnStickerMessage(cb HandlerFunc, opts ...HandlerOption) int {
	return c.RegisterHandler(NewStickerHandler(cb, opts...))
}

// OnLocationMessage registers a handler for shared locations.
func (c *Client) OnLocationMessage(cb HandlerFunc, opts ...HandlerOption) int {
	return c.RegisterHandler(NewLocationHandler(cb, opts...))
}

type nextStepSettings struct {
	fallback HandlerFunc
	pattern  *regexp.Regexp
}

// NextStepOption configures a next-step override.
type NextStepOption func(*nextStepSettings)

// WithFallback installs a cancellation callback for the override. It runs
// instead of the primary handler when the user's text matches the fallback
// pattern, and consumes the override just the same.
func WithFallback(cb HandlerFunc) NextStepOption {
	return func(s *nextStepSettings) { s.fallback = cb }
}

// WithFallbackPattern overrides the pattern the fallback callback matches.
// The default matches "end", "stop" or "cancel", case-insensitively.
func WithFallbackPattern(re *regexp.Regexp) NextStepOption {
	return func(s *nextStepSettings) { s.pattern = re }
}

// SetNextStep installs h as the single-use override for the update's sender,
// replacing any existing override. The next message from that sender is
// routed to h (or the fallback) instead of the regular handlers; persistent
// handlers still take precedence.
func (c *Client) SetNextStep(upd *Update, h *Handler, opts ...NextStepOption) {
	var s nextStepSettings
	for _, opt := range opts {
		opt(&s)
	}

	cfg := &nextStepConfig{primary: h}
	if s.fallback != nil {
		pattern := s.pattern
		if pattern == nil {
			pattern = defaultFallbackPattern
		}
		cfg.fallback = NewTextHandler(s.fallback, WithRegex(pattern))
	}
	c.disp.setNextStep(upd.Sender, cfg)
}

// ClearNextStep removes any override for the sender. Idempotent.
func (c *Client) ClearNextStep(sender string) { c.disp.clearNextStep(sender) }

type sendSettings struct {
	header     string
	footer     string
	replyTo    string
	previewURL bool
}

// SendOption tweaks an outbound convenience send.
type SendOption func(*sendSettings)

// WithHeader sets the header text of an interactive send.
func WithHeader(text string) SendOption {
	return func(s *sendSettings) { s.header = text }
}

// WithFooter sets the footer text of an interactive send.
func WithFooter(text string) SendOption {
	return func(s *sendSettings) { s.footer = text }
}

// WithPreviewURL enables link previews on a text send.
func WithPreviewURL() SendOption {
	return func(s *sendSettings) { s.previewURL = true }
}

func replyTo(messageID string) SendOption {
	return func(s *sendSettings) { s.replyTo = messageID }
}

func applySendOptions(opts []SendOption) sendSettings {
	var s sendSettings
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, text string, opts ...SendOption) error {
	s := applySendOptions(opts)
	_, err := c.transport.SendText(ctx, whatsapp.SendTextRequest{
		To:         to,
		Body:       text,
		PreviewURL: s.previewURL,
		ReplyTo:    s.replyTo,
	})
	return err
}

// SendMarkup sends an interactive message carrying a validated markup.
func (c *Client) SendMarkup(ctx context.Context, to, body string, markup *ReplyMarkup, opts ...SendOption) error {
	s := applySendOptions(opts)
	_, err := c.transport.SendInteractive(ctx, whatsapp.SendInteractiveRequest{
		To:      to,
		Type:    markup.Kind(),
		Body:    body,
		Header:  s.header,
		Footer:  s.footer,
		Action:  markup.Action(),
		ReplyTo: s.replyTo,
	})
	return err
}

// SendTemplate sends a pre-approved template message.
func (c *Client) SendTemplate(ctx context.Context, to, name, languageCode string, components ...whatsapp.TemplateComponent) error {
	_, err := c.transport.SendTemplate(ctx, whatsapp.SendTemplateRequest{
		To:           to,
		Name:         name,
		LanguageCode: languageCode,
		Components:   components,
	})
	return err
}

// SendMedia sends a media message. MediaRef is a remote link or an uploaded
// media id.
func (c *Client) SendMedia(ctx context.Context, to, kind, mediaRef, caption string, opts ...SendOption) error {
	s := applySendOptions(opts)
	_, err := c.transport.SendMedia(ctx, whatsapp.SendMediaRequest{
		To:       to,
		Kind:     kind,
		MediaRef: mediaRef,
		Caption:  caption,
		ReplyTo:  s.replyTo,
	})
	return err
}

// SendLocation sends a location message.
func (c *Client) SendLocation(ctx context.Context, to string, lat, long float64, name, address string) error {
	_, err := c.transport.SendLocation(ctx, whatsapp.SendLocationRequest{
		To:        to,
		Latitude:  lat,
		Longitude: long,
		Name:      name,
		Address:   address,
	})
	return err
}
