// Package whatsapp is a thin client for the Meta WhatsApp Cloud API send and
// media endpoints. Every call is a single timed HTTP request; retries and
// rate limiting are left to the caller.
package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sdiouf/wabot/pkg/wautil"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v20.0"
	defaultTimeout    = 30 * time.Second
)

// Config carries the credentials and endpoint options for the Cloud API.
type Config struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	Timeout       time.Duration
}

// Client exposes the WhatsApp Cloud API operations used by the bot core.
type Client interface {
	SendText(ctx context.Context, req SendTextRequest) (*SendResponse, error)
	SendInteractive(ctx context.Context, req SendInteractiveRequest) (*SendResponse, error)
	SendTemplate(ctx context.Context, req SendTemplateRequest) (*SendResponse, error)
	SendMedia(ctx context.Context, req SendMediaRequest) (*SendResponse, error)
	SendLocation(ctx context.Context, req SendLocationRequest) (*SendResponse, error)
	MarkAsRead(ctx context.Context, messageID string) error
	GetMedia(ctx context.Context, mediaID string) (*MediaInfo, error)
	DownloadMedia(ctx context.Context, url string) ([]byte, error)
	DownloadMediaTo(ctx context.Context, url, path string) error
	UploadMedia(ctx context.Context, req UploadMediaRequest) (string, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient    *resty.Client
	phoneNumberID string
}

// NewClient builds a Cloud API client from the provided configuration.
func NewClient(cfg Config) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(fmt.Sprintf("%s/%s", base, version)).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.AccessToken)).
		SetTimeout(timeout)

	return &APIClient{
		httpClient:    restyClient,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

// SendResponse mirrors the successful response from Meta's messages endpoint.
type SendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MessageID returns the id of the first accepted message, if any.
func (r *SendResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// apiError represents a WhatsApp Cloud API error payload.
type apiError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

// SendTextRequest represents a plain text message payload.
type SendTextRequest struct {
	To         string
	Body       string
	PreviewURL bool
	ReplyTo    string
}

// SendText posts a text message.
func (c *APIClient) SendText(ctx context.Context, req SendTextRequest) (*SendResponse, error) {
	payload := basePayload(req.To, "text", req.ReplyTo)
	payload["text"] = map[string]any{
		"body":        req.Body,
		"preview_url": req.PreviewURL,
	}
	return c.postMessage(ctx, payload)
}

// InteractiveHeader is the optional header block of an interactive message.
// Only text headers are modeled.
type InteractiveHeader struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// InteractiveButton wraps one reply button in the interactive action.
type InteractiveButton struct {
	Type  string       `json:"type"`
	Reply *ButtonReply `json:"reply,omitempty"`
}

// ButtonReply carries a reply button's id and visible title.
type ButtonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ListSection groups rows in a list message.
type ListSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []ListRow `json:"rows"`
}

// ListRow is one selectable row in a list message.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// InteractiveAction is the action block of an interactive message. Which
// fields apply depends on the interactive type: Buttons for button sets,
// Button+Sections for lists, Name for location requests.
type InteractiveAction struct {
	Buttons  []InteractiveButton `json:"buttons,omitempty"`
	Button   string              `json:"button,omitempty"`
	Sections []ListSection       `json:"sections,omitempty"`
	Name     string              `json:"name,omitempty"`
}

// SendInteractiveRequest represents an interactive message payload.
type SendInteractiveRequest struct {
	To      string
	Type    string // "button", "list" or "location_request_message"
	Body    string
	Header  string
	Footer  string
	Action  InteractiveAction
	ReplyTo string
}

// SendInteractive posts a button set, list or location request.
func (c *APIClient) SendInteractive(ctx context.Context, req SendInteractiveRequest) (*SendResponse, error) {
	interactive := map[string]any{
		"type":   req.Type,
		"body":   map[string]any{"text": req.Body},
		"action": req.Action,
	}
	if req.Header != "" {
		interactive["header"] = InteractiveHeader{Type: "text", Text: req.Header}
	}
	if req.Footer != "" {
		interactive["footer"] = map[string]any{"text": req.Footer}
	}

	payload := basePayload(req.To, "interactive", req.ReplyTo)
	payload["interactive"] = interactive
	return c.postMessage(ctx, payload)
}

// TemplateComponent is one component of a template send (body, header or
// button parameters).
type TemplateComponent struct {
	Type       string              `json:"type"`
	SubType    string              `json:"sub_type,omitempty"`
	Index      string              `json:"index,omitempty"`
	Parameters []TemplateParameter `json:"parameters,omitempty"`
}

// TemplateParameter is a single template parameter value.
type TemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// SendTemplateRequest represents a pre-approved template send.
type SendTemplateRequest struct {
	To           string
	Name         string
	LanguageCode string
	Components   []TemplateComponent
}

// SendTemplate posts a template message.
func (c *APIClient) SendTemplate(ctx context.Context, req SendTemplateRequest) (*SendResponse, error) {
	payload := basePayload(req.To, "template", "")
	payload["template"] = map[string]any{
		"name":       req.Name,
		"language":   map[string]any{"code": req.LanguageCode},
		"components": req.Components,
	}
	return c.postMessage(ctx, payload)
}

// SendMediaRequest represents a media send. MediaRef is either a remote link
// or a provider-side media id; the two are told apart by URL shape.
type SendMediaRequest struct {
	To       string
	Kind     string // "image", "audio", "video", "document" or "sticker"
	MediaRef string
	Caption  string
	Filename string
	ReplyTo  string
}

// SendMedia posts a media message by link or by uploaded media id.
func (c *APIClient) SendMedia(ctx context.Context, req SendMediaRequest) (*SendResponse, error) {
	media := map[string]any{}
	if wautil.IsLink(req.MediaRef) {
		media["link"] = req.MediaRef
	} else {
		media["id"] = req.MediaRef
	}
	if req.Caption != "" {
		media["caption"] = req.Caption
	}
	if req.Filename != "" && req.Kind == "document" {
		media["filename"] = req.Filename
	}

	payload := basePayload(req.To, req.Kind, req.ReplyTo)
	payload[req.Kind] = media
	return c.postMessage(ctx, payload)
}

// SendLocationRequest represents a location share.
type SendLocationRequest struct {
	To        string
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
	ReplyTo   string
}

// SendLocation posts a location message.
func (c *APIClient) SendLocation(ctx context.Context, req SendLocationRequest) (*SendResponse, error) {
	location := map[string]any{
		"latitude":  req.Latitude,
		"longitude": req.Longitude,
	}
	if req.Name != "" {
		location["name"] = req.Name
	}
	if req.Address != "" {
		location["address"] = req.Address
	}

	payload := basePayload(req.To, "location", req.ReplyTo)
	payload["location"] = location
	return c.postMessage(ctx, payload)
}

// MarkAsRead flags an inbound message as read.
func (c *APIClient) MarkAsRead(ctx context.Context, messageID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	_, err := c.postMessage(ctx, payload)
	return err
}

// MediaInfo is the metadata the Cloud API returns for a media id. URL is
// short-lived and must be fetched with the same bearer token.
type MediaInfo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Sha256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
}

// GetMedia fetches download metadata for a media id.
func (c *APIClient) GetMedia(ctx context.Context, mediaID string) (*MediaInfo, error) {
	info := new(MediaInfo)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(info).
		SetError(apiErr).
		Get("/" + mediaID)
	if err != nil {
		return nil, fmt.Errorf("get media %s: %w", mediaID, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, responseError(resp.StatusCode(), apiErr)
	}
	return info, nil
}

// DownloadMedia fetches a media URL into memory.
func (c *APIClient) DownloadMedia(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("download media: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// DownloadMediaTo streams a media URL to a file on disk.
func (c *APIClient) DownloadMediaTo(ctx context.Context, url, path string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetOutput(path).
		Get(url)
	if err != nil {
		return fmt.Errorf("download media to %s: %w", path, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("download media to %s: status %d", path, resp.StatusCode())
	}
	return nil
}

// UploadMediaRequest represents a multipart media upload.
type UploadMediaRequest struct {
	Path     string
	MimeType string
}

// UploadMedia uploads a local file and returns the provider-side media id.
func (c *APIClient) UploadMedia(ctx context.Context, req UploadMediaRequest) (string, error) {
	result := new(struct {
		ID string `json:"id"`
	})
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFile("file", req.Path).
		SetFormData(map[string]string{
			"messaging_product": "whatsapp",
			"type":              req.MimeType,
		}).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("/%s/media", c.phoneNumberID))
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return "", responseError(resp.StatusCode(), apiErr)
	}
	return result.ID, nil
}

func basePayload(to, msgType, replyTo string) map[string]any {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              msgType,
	}
	if replyTo != "" {
		payload["context"] = map[string]any{"message_id": replyTo}
	}
	return payload
}

func (c *APIClient) postMessage(ctx context.Context, payload map[string]any) (*SendResponse, error) {
	result := new(SendResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("/%s/messages", c.phoneNumberID))
	if err != nil {
		return nil, fmt.Errorf("send whatsapp message: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, responseError(resp.StatusCode(), apiErr)
	}

	return result, nil
}

func responseError(status int, apiErr *apiError) error {
	message := ""
	code := status
	if apiErr != nil {
		message = apiErr.Error.Message
		if apiErr.Error.Code != 0 {
			code = apiErr.Error.Code
		}
	}
	return fmt.Errorf("whatsapp api error: code=%d, message=%s", code, message)
}
