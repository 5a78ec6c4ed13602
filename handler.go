package wabot

import (
	"context"
	"regexp"
	"strconv"
)

// HandlerFunc is the callback invoked for a dispatched message. The update is
// owned by the current dispatch cycle; callbacks may read and mutate it
// freely. Returned errors are reported through the dispatcher's error
// boundary and never stop the queue.
type HandlerFunc func(ctx context.Context, upd *Update) error

// Handler pairs a message kind with an extraction function, an optional
// filter and the callback to run. Handlers are built through the New*Handler
// constructors and registered on a Client, either directly or as a next-step
// override.
type Handler struct {
	kind         MessageKind
	regex        *regexp.Regexp
	filter       func(text string) bool
	wantsContext bool
	persistent   bool

	// interactive-only toggles
	handleButton bool
	handleList   bool

	extract  func(h *Handler, msg *Message) Extracted
	callback HandlerFunc
}

// HandlerOption configures a handler at construction time.
type HandlerOption func(*Handler)

// WithRegex sets a regular expression tested against the extracted message
// text. If both a regex and a predicate are configured, the regex takes
// precedence and the predicate is ignored.
func WithRegex(re *regexp.Regexp) HandlerOption {
	return func(h *Handler) { h.regex = re }
}

// WithFilter sets a predicate tested against the extracted message text.
// Ignored when a regex is also configured; see WithRegex.
func WithFilter(fn func(text string) bool) HandlerOption {
	return func(h *Handler) { h.filter = fn }
}

// WithUserContext makes the dispatcher attach the sender's conversation
// context to the update before the callback runs.
func WithUserContext() HandlerOption {
	return func(h *Handler) { h.wantsContext = true }
}

// Persistent marks the handler as considered for every message, regardless of
// any next-step override active for the sender.
func Persistent() HandlerOption {
	return func(h *Handler) { h.persistent = true }
}

// WithButtonReplies toggles extraction of button replies on an interactive
// handler. Defaults to enabled.
func WithButtonReplies(enabled bool) HandlerOption {
	return func(h *Handler) { h.handleButton = enabled }
}

// WithListReplies toggles extraction of list replies on an interactive
// handler. Defaults to enabled.
func WithListReplies(enabled bool) HandlerOption {
	return func(h *Handler) { h.handleList = enabled }
}

// Kind returns the message kind this handler matches.
func (h *Handler) Kind() MessageKind { return h.kind }

// filterCheck runs the configured filter against the extracted text.
// No filter means pass-through.
func (h *Handler) filterCheck(text string) bool {
	if h.regex != nil {
		return h.regex.MatchString(text)
	}
	if h.filter != nil {
		return h.filter(text)
	}
	return true
}

func newHandler(kind MessageKind, cb HandlerFunc, extract func(*Handler, *Message) Extracted, opts []HandlerOption) *Handler {
	h := &Handler{
		kind:         kind,
		handleButton: true,
		handleList:   true,
		extract:      extract,
		callback:     cb,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewTextHandler builds a handler for plain text messages.
func NewTextHandler(cb HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(KindText, cb, extractText, opts)
}

// NewInteractiveHandler builds a handler for button and list replies. Use
// WithButtonReplies/WithListReplies to restrict it to one reply style.
func NewInteractiveHandler(cb HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(KindInteractive, cb, extractInteractive, opts)
}

// NewImageHandler builds a handler for image messages.
func NewImageHandler(cb HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(KindImage, cb, extractImage, opts)
}

// NewAudioHandler builds a handler for audio messages, including voice notes.
func NewAudioHandler(cb HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(KindAudio, cb, extractAudio, opts)
}

// NewVideoHandler builds a handler for video messages.
func NewVideoHandler(cb HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(KindVideo, cb, extractVideo, opts)
}

// NewDocumentHandler builds a handler for document messages.
func NewDocumentHandler(cb HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(KindDocument, cb, extractDocument, opts)
}

// NewStickerHandler builds a handler for sticker messages.
func NewStickerHandler(cb HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(KindSticker, cb, extractSticker, opts)
}

// NewLocationHandler builds a handler for shared locations.
func NewLocationHandler(cb HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(KindLocation, cb, extractLocation, opts)
}

// NewUnknownHandler builds a catch-all for message kinds the provider tags as
// unknown.
func NewUnknownHandler(cb HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(KindUnknown, cb, extractNothing, opts)
}

// NewUnsupportedHandler builds a catch-all for message kinds the provider
// tags as unsupported.
func NewUnsupportedHandler(cb HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(KindUnsupported, cb, extractNothing, opts)
}

// Extracted is the normalized projection of a raw message produced by a
// handler's extraction function. MessageText is always set; an empty string
// means the message has no natural text representation. The remaining fields
// are populated per message kind.
type Extracted struct {
	MessageText string

	ButtonReply *ButtonReply
	ListReply   *ListReply

	MediaID  string
	MimeType string
	Sha256   string
	Caption  string
	Filename string
	Voice    bool

	Location *LocationContent
}

func extractText(_ *Handler, msg *Message) Extracted {
	if msg.Text == nil {
		return Extracted{}
	}
	return Extracted{MessageText: msg.Text.Body}
}

func extractInteractive(h *Handler, msg *Message) Extracted {
	if msg.Interactive == nil {
		return Extracted{}
	}
	if h.handleButton && msg.Interactive.ButtonReply != nil {
		return Extracted{
			MessageText: msg.Interactive.ButtonReply.ID,
			ButtonReply: msg.Interactive.ButtonReply,
		}
	}
	if h.handleList && msg.Interactive.ListReply != nil {
		return Extracted{
			MessageText: msg.Interactive.ListReply.ID,
			ListReply:   msg.Interactive.ListReply,
		}
	}
	return Extracted{}
}

func extractImage(_ *Handler, msg *Message) Extracted {
	if msg.Image == nil {
		return Extracted{}
	}
	return Extracted{
		MessageText: msg.Image.Caption,
		MediaID:     msg.Image.ID,
		MimeType:    msg.Image.MimeType,
		Sha256:      msg.Image.Sha256,
		Caption:     msg.Image.Caption,
	}
}

func extractAudio(_ *Handler, msg *Message) Extracted {
	if msg.Audio == nil {
		return Extracted{}
	}
	return Extracted{
		MediaID:  msg.Audio.ID,
		MimeType: msg.Audio.MimeType,
		Sha256:   msg.Audio.Sha256,
		Voice:    msg.Audio.Voice,
	}
}

func extractVideo(_ *Handler, msg *Message) Extracted {
	if msg.Video == nil {
		return Extracted{}
	}
	return Extracted{
		MessageText: msg.Video.Caption,
		MediaID:     msg.Video.ID,
		MimeType:    msg.Video.MimeType,
		Sha256:      msg.Video.Sha256,
		Caption:     msg.Video.Caption,
	}
}

func extractDocument(_ *Handler, msg *Message) Extracted {
	if msg.Document == nil {
		return Extracted{}
	}
	return Extracted{
		MessageText: msg.Document.Caption,
		MediaID:     msg.Document.ID,
		MimeType:    msg.Document.MimeType,
		Sha256:      msg.Document.Sha256,
		Caption:     msg.Document.Caption,
		Filename:    msg.Document.Filename,
	}
}

func extractSticker(_ *Handler, msg *Message) Extracted {
	if msg.Sticker == nil {
		return Extracted{}
	}
	return Extracted{
		MediaID:  msg.Sticker.ID,
		MimeType: msg.Sticker.MimeType,
		Sha256:   msg.Sticker.Sha256,
	}
}

func extractLocation(_ *Handler, msg *Message) Extracted {
	if msg.Location == nil {
		return Extracted{}
	}
	loc := msg.Location
	return Extracted{
		MessageText: locationText(loc),
		Location:    loc,
	}
}

func extractNothing(_ *Handler, _ *Message) Extracted {
	return Extracted{}
}

// locationText renders a display string for a shared location, preferring the
// human-readable name and address over raw coordinates.
func locationText(loc *LocationContent) string {
	switch {
	case loc.Name != "" && loc.Address != "":
		return loc.Name + ", " + loc.Address
	case loc.Name != "":
		return loc.Name
	case loc.Address != "":
		return loc.Address
	}
	lat := strconv.FormatFloat(loc.Latitude, 'f', -1, 64)
	long := strconv.FormatFloat(loc.Longitude, 'f', -1, 64)
	return "lat: " + lat + ", long: " + long
}
