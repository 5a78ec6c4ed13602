package wabot

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, *Update) error { return nil }

func TestExtractText(t *testing.T) {
	h := NewTextHandler(noop)

	data, ok := handlerMatch(h, &Message{Type: KindText, Text: &TextContent{Body: "hello"}})
	require.True(t, ok)
	assert.Equal(t, "hello", data.MessageText)

	// A text message missing its body still matches an unfiltered handler,
	// with empty text.
	data, ok = handlerMatch(h, &Message{Type: KindText})
	require.True(t, ok)
	assert.Empty(t, data.MessageText)
}

func TestExtractInteractive(t *testing.T) {
	buttonMsg := &Message{Type: KindInteractive, Interactive: &InteractiveContent{
		Type:        "button_reply",
		ButtonReply: &ButtonReply{ID: "opt_1", Title: "First"},
	}}
	listMsg := &Message{Type: KindInteractive, Interactive: &InteractiveContent{
		Type:      "list_reply",
		ListReply: &ListReply{ID: "row_2", Title: "Second", Description: "details"},
	}}

	t.Run("button reply", func(t *testing.T) {
		data, ok := handlerMatch(NewInteractiveHandler(noop), buttonMsg)
		require.True(t, ok)
		assert.Equal(t, "opt_1", data.MessageText)
		require.NotNil(t, data.ButtonReply)
		assert.Equal(t, "First", data.ButtonReply.Title)
		assert.Nil(t, data.ListReply)
	})

	t.Run("list reply", func(t *testing.T) {
		data, ok := handlerMatch(NewInteractiveHandler(noop), listMsg)
		require.True(t, ok)
		assert.Equal(t, "row_2", data.MessageText)
		require.NotNil(t, data.ListReply)
		assert.Equal(t, "details", data.ListReply.Description)
	})

	t.Run("button replies disabled", func(t *testing.T) {
		h := NewInteractiveHandler(noop, WithButtonReplies(false))
		data, _ := handlerMatch(h, buttonMsg)
		assert.Empty(t, data.MessageText)
		assert.Nil(t, data.ButtonReply)
	})

	t.Run("list replies disabled", func(t *testing.T) {
		h := NewInteractiveHandler(noop, WithListReplies(false))
		data, _ := handlerMatch(h, listMsg)
		assert.Empty(t, data.MessageText)
		assert.Nil(t, data.ListReply)
	})
}

func TestExtractMedia(t *testing.T) {
	t.Run("image caption becomes text", func(t *testing.T) {
		h := NewImageHandler(noop)
		data, ok := handlerMatch(h, &Message{Type: KindImage, Image: &MediaContent{
			ID: "med-1", MimeType: "image/jpeg", Sha256: "abc", Caption: "sunset",
		}})
		require.True(t, ok)
		assert.Equal(t, "sunset", data.MessageText)
		assert.Equal(t, "med-1", data.MediaID)
		assert.Equal(t, "image/jpeg", data.MimeType)
	})

	t.Run("audio carries the voice flag", func(t *testing.T) {
		h := NewAudioHandler(noop)
		data, ok := handlerMatch(h, &Message{Type: KindAudio, Audio: &AudioContent{
			ID: "med-2", MimeType: "audio/ogg", Voice: true,
		}})
		require.True(t, ok)
		assert.Empty(t, data.MessageText)
		assert.True(t, data.Voice)
	})

	t.Run("document keeps its filename", func(t *testing.T) {
		h := NewDocumentHandler(noop)
		data, ok := handlerMatch(h, &Message{Type: KindDocument, Document: &MediaContent{
			ID: "med-3", MimeType: "application/pdf", Filename: "invoice.pdf",
		}})
		require.True(t, ok)
		assert.Equal(t, "invoice.pdf", data.Filename)
	})
}

func TestExtractLocation(t *testing.T) {
	h := NewLocationHandler(noop)

	cases := []struct {
		name string
		loc  LocationContent
		want string
	}{
		{"name and address", LocationContent{Name: "Cafe", Address: "Main St 1"}, "Cafe, Main St 1"},
		{"name only", LocationContent{Name: "Cafe"}, "Cafe"},
		{"address only", LocationContent{Address: "Main St 1"}, "Main St 1"},
		{"coordinates only", LocationContent{Latitude: 1.5, Longitude: 2.5}, "lat: 1.5, long: 2.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loc := tc.loc
			data, ok := handlerMatch(h, &Message{Type: KindLocation, Location: &loc})
			require.True(t, ok)
			assert.Equal(t, tc.want, data.MessageText)
			assert.Equal(t, &loc, data.Location)
		})
	}
}

func TestFilterCheck(t *testing.T) {
	msg := &Message{Type: KindText, Text: &TextContent{Body: "hello world"}}

	t.Run("regex filters text", func(t *testing.T) {
		h := NewTextHandler(noop, WithRegex(regexp.MustCompile(`^hello`)))
		_, ok := handlerMatch(h, msg)
		assert.True(t, ok)

		h = NewTextHandler(noop, WithRegex(regexp.MustCompile(`^bye`)))
		_, ok = handlerMatch(h, msg)
		assert.False(t, ok)
	})

	t.Run("predicate filters text", func(t *testing.T) {
		h := NewTextHandler(noop, WithFilter(func(text string) bool {
			return strings.Contains(text, "world")
		}))
		_, ok := handlerMatch(h, msg)
		assert.True(t, ok)
	})

	t.Run("regex wins over predicate", func(t *testing.T) {
		h := NewTextHandler(noop,
			WithRegex(regexp.MustCompile(`^nope`)),
			WithFilter(func(string) bool { return true }))
		_, ok := handlerMatch(h, msg)
		assert.False(t, ok)
	})

	t.Run("kind mismatch never matches", func(t *testing.T) {
		h := NewImageHandler(noop)
		_, ok := handlerMatch(h, msg)
		assert.False(t, ok)
	})
}
