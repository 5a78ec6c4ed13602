package whatsapp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   []byte
}

// newTestServer serves canned responses and records every request for
// assertion.
func newTestServer(t *testing.T, status int, response string) (*APIClient, *[]recordedRequest) {
	t.Helper()

	var recorded []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		recorded = append(recorded, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			body:   body,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		AccessToken:   "test-token",
		PhoneNumberID: "1555000111",
		BaseURL:       srv.URL,
		APIVersion:    "v20.0",
	})
	return client, &recorded
}

const acceptedResponse = `{"messages": [{"id": "wamid.ACCEPTED"}]}`

func TestSendText(t *testing.T) {
	client, recorded := newTestServer(t, http.StatusOK, acceptedResponse)

	resp, err := client.SendText(context.Background(), SendTextRequest{
		To:      "221771234567",
		Body:    "hello",
		ReplyTo: "wamid.ORIGINAL",
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.ACCEPTED", resp.MessageID())

	require.Len(t, *recorded, 1)
	req := (*recorded)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/v20.0/1555000111/messages", req.path)
	assert.Equal(t, "Bearer test-token", req.auth)

	body := gjson.ParseBytes(req.body)
	assert.Equal(t, "whatsapp", body.Get("messaging_product").String())
	assert.Equal(t, "individual", body.Get("recipient_type").String())
	assert.Equal(t, "221771234567", body.Get("to").String())
	assert.Equal(t, "text", body.Get("type").String())
	assert.Equal(t, "hello", body.Get("text.body").String())
	assert.Equal(t, "wamid.ORIGINAL", body.Get("context.message_id").String())
}

func TestSendTextOmitsContextWithoutReplyTo(t *testing.T) {
	client, recorded := newTestServer(t, http.StatusOK, acceptedResponse)

	_, err := client.SendText(context.Background(), SendTextRequest{To: "221", Body: "hi"})
	require.NoError(t, err)

	body := gjson.ParseBytes((*recorded)[0].body)
	assert.False(t, body.Get("context").Exists())
}

func TestSendInteractive(t *testing.T) {
	client, recorded := newTestServer(t, http.StatusOK, acceptedResponse)

	_, err := client.SendInteractive(context.Background(), SendInteractiveRequest{
		To:     "221",
		Type:   "button",
		Body:   "Pick one",
		Header: "Menu",
		Footer: "Powered by bots",
		Action: InteractiveAction{Buttons: []InteractiveButton{
			{Type: "reply", Reply: &ButtonReply{ID: "a", Title: "A"}},
		}},
	})
	require.NoError(t, err)

	body := gjson.ParseBytes((*recorded)[0].body)
	assert.Equal(t, "interactive", body.Get("type").String())
	assert.Equal(t, "button", body.Get("interactive.type").String())
	assert.Equal(t, "Pick one", body.Get("interactive.body.text").String())
	assert.Equal(t, "text", body.Get("interactive.header.type").String())
	assert.Equal(t, "Menu", body.Get("interactive.header.text").String())
	assert.Equal(t, "Powered by bots", body.Get("interactive.footer.text").String())
	assert.Equal(t, "a", body.Get("interactive.action.buttons.0.reply.id").String())
}

func TestSendTemplate(t *testing.T) {
	client, recorded := newTestServer(t, http.StatusOK, acceptedResponse)

	_, err := client.SendTemplate(context.Background(), SendTemplateRequest{
		To:           "221",
		Name:         "order_update",
		LanguageCode: "en_US",
		Components: []TemplateComponent{{
			Type:       "body",
			Parameters: []TemplateParameter{{Type: "text", Text: "42"}},
		}},
	})
	require.NoError(t, err)

	body := gjson.ParseBytes((*recorded)[0].body)
	assert.Equal(t, "template", body.Get("type").String())
	assert.Equal(t, "order_update", body.Get("template.name").String())
	assert.Equal(t, "en_US", body.Get("template.language.code").String())
	assert.Equal(t, "42", body.Get("template.components.0.parameters.0.text").String())
}

func TestSendMedia(t *testing.T) {
	t.Run("by link", func(t *testing.T) {
		client, recorded := newTestServer(t, http.StatusOK, acceptedResponse)

		_, err := client.SendMedia(context.Background(), SendMediaRequest{
			To:       "221",
			Kind:     "image",
			MediaRef: "https://example.com/pic.jpg",
			Caption:  "look",
		})
		require.NoError(t, err)

		body := gjson.ParseBytes((*recorded)[0].body)
		assert.Equal(t, "image", body.Get("type").String())
		assert.Equal(t, "https://example.com/pic.jpg", body.Get("image.link").String())
		assert.Equal(t, "look", body.Get("image.caption").String())
		assert.False(t, body.Get("image.id").Exists())
	})

	t.Run("by media id", func(t *testing.T) {
		client, recorded := newTestServer(t, http.StatusOK, acceptedResponse)

		_, err := client.SendMedia(context.Background(), SendMediaRequest{
			To:       "221",
			Kind:     "document",
			MediaRef: "123456",
			Filename: "invoice.pdf",
		})
		require.NoError(t, err)

		body := gjson.ParseBytes((*recorded)[0].body)
		assert.Equal(t, "123456", body.Get("document.id").String())
		assert.Equal(t, "invoice.pdf", body.Get("document.filename").String())
		assert.False(t, body.Get("document.link").Exists())
	})
}

func TestSendLocation(t *testing.T) {
	client, recorded := newTestServer(t, http.StatusOK, acceptedResponse)

	_, err := client.SendLocation(context.Background(), SendLocationRequest{
		To:       "221",
		Latitude: 14.6937, Longitude: -17.4441,
		Name: "Office", Address: "Dakar",
	})
	require.NoError(t, err)

	body := gjson.ParseBytes((*recorded)[0].body)
	assert.Equal(t, "location", body.Get("type").String())
	assert.InDelta(t, 14.6937, body.Get("location.latitude").Float(), 1e-9)
	assert.Equal(t, "Office", body.Get("location.name").String())
}

func TestMarkAsRead(t *testing.T) {
	client, recorded := newTestServer(t, http.StatusOK, `{"success": true}`)

	require.NoError(t, client.MarkAsRead(context.Background(), "wamid.MSG"))

	body := gjson.ParseBytes((*recorded)[0].body)
	assert.Equal(t, "whatsapp", body.Get("messaging_product").String())
	assert.Equal(t, "read", body.Get("status").String())
	assert.Equal(t, "wamid.MSG", body.Get("message_id").String())
}

func TestAPIErrorSurfaced(t *testing.T) {
	client, _ := newTestServer(t, http.StatusBadRequest,
		`{"error": {"message": "Invalid parameter", "code": 100}}`)

	_, err := client.SendText(context.Background(), SendTextRequest{To: "221", Body: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code=100")
	assert.Contains(t, err.Error(), "Invalid parameter")
}

func TestGetMedia(t *testing.T) {
	client, recorded := newTestServer(t, http.StatusOK,
		`{"id": "med-1", "url": "https://lookaside.example/abc", "mime_type": "image/jpeg", "sha256": "deadbeef", "file_size": 2048}`)

	info, err := client.GetMedia(context.Background(), "med-1")
	require.NoError(t, err)
	assert.Equal(t, "/v20.0/med-1", (*recorded)[0].path)
	assert.Equal(t, "https://lookaside.example/abc", info.URL)
	assert.Equal(t, "image/jpeg", info.MimeType)
	assert.EqualValues(t, 2048, info.FileSize)
}

func TestDownloadMedia(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK, "raw-bytes")

	data, err := client.DownloadMedia(context.Background(), "/v20.0/some/media/url")
	require.NoError(t, err)
	assert.Equal(t, []byte("raw-bytes"), data)
}

func TestDownloadMediaTo(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK, "file-contents")

	path := filepath.Join(t.TempDir(), "media.bin")
	require.NoError(t, client.DownloadMediaTo(context.Background(), "/v20.0/some/media/url", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file-contents", string(data))
}

func TestUploadMedia(t *testing.T) {
	client, recorded := newTestServer(t, http.StatusOK, `{"id": "uploaded-1"}`)

	path := filepath.Join(t.TempDir(), "pic.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o600))

	id, err := client.UploadMedia(context.Background(), UploadMediaRequest{
		Path:     path,
		MimeType: "image/jpeg",
	})
	require.NoError(t, err)
	assert.Equal(t, "uploaded-1", id)

	req := (*recorded)[0]
	assert.Equal(t, "/v20.0/1555000111/media", req.path)
	body := string(req.body)
	assert.Contains(t, body, "messaging_product")
	assert.Contains(t, body, "whatsapp")
	assert.Contains(t, body, "jpeg-bytes")
}
