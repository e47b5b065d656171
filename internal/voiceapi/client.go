// Package voiceapi provides the HTTP client for the voice backend REST API.
//
// Every endpoint the studio consumes is reached through Client: the voice
// catalog, clone management, speech generation, translation and the generation
// history. Audio locators returned by the backend are resolved against the
// configured base URL.
package voiceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/voice-studio/internal/core"
)

// API endpoints and paths.
const (
	apiProfiles  = "/api/voices/profiles/"
	apiClones    = "/api/voices/clones/"
	apiGenerate  = "/api/voices/generate/"
	apiTranslate = "/api/voices/translate/"
	apiHistory   = "/api/voices/history/"
)

// HTTP headers.
const (
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	bearerPrefix        = "Bearer "
)

// Default values.
const (
	defaultSourceLanguage = "auto"
	filterAll             = "all"
)

// Error messages.
const (
	errFmtCreateRequest    = "failed to create %s request for %s: %w"
	errFmtSendRequest      = "failed to send request to voice service at %s: %w"
	errFmtDecodeResponse   = "failed to decode response from %s: %w"
	errFmtMarshalRequest   = "failed to marshal request for %s: %w"
	errFmtReadAudio        = "failed to read audio from %s: %w"
	errFmtServiceError     = "voice service error (%s): %s"
	errFmtServiceNonOK     = "voice service returned non-OK status: %s, body: %s"
	errFmtUnknownVoiceType = "%w: %q"
)

// Static errors.
var (
	ErrTextEmpty        = errors.New("text cannot be empty")
	ErrTargetLanguage   = errors.New("target language cannot be empty")
	ErrInvalidResultID  = errors.New("history id must be set")
	ErrReceivedNoAudio  = errors.New("received empty audio data")
	ErrUnknownVoiceType = errors.New("unknown voice type")
)

// StatusError is returned when the backend answers with a non-2xx status. A
// StatusError means a response was received, unlike transport failures.
type StatusError struct {
	StatusCode int
	Status     string
	Detail     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf(errFmtServiceError, e.Status, e.Detail)
	}

	return fmt.Sprintf(errFmtServiceNonOK, e.Status, e.Body)
}

// HTTPStatus returns the status code of the received response.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// errorResponse represents the structured error bodies the backend produces.
type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// Option customizes a Client.
type Option func(*Client)

// WithAuthToken sends a bearer token with every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is the HTTP client for the voice backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
}

// Compile-time interface assertions.
var (
	_ core.CatalogAPI     = (*Client)(nil)
	_ core.SpeechAPI      = (*Client)(nil)
	_ core.TranslationAPI = (*Client)(nil)
	_ core.HistoryAPI     = (*Client)(nil)
	_ core.AudioFetcher   = (*Client)(nil)
	_ core.CloneAPI       = (*Client)(nil)

	_ core.ResponseError = (*StatusError)(nil)
)

// NewClient creates a client for the backend at baseURL (e.g.
// "http://localhost:8000"). The timeout applies to every request.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListProfiles fetches the prebuilt voice profiles, optionally filtered
// server-side.
func (c *Client) ListProfiles(ctx context.Context, filter core.ProfileFilter) ([]core.VoiceTarget, error) {
	query := url.Values{}
	addFilter(query, "gender", filter.Gender)
	addFilter(query, "emotion", filter.Emotion)
	addFilter(query, "language", filter.Language)

	path := apiProfiles
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var raw json.RawMessage

	err := c.doJSON(ctx, http.MethodGet, path, nil, &raw)
	if err != nil {
		return nil, err
	}

	profiles, err := decodeList[core.VoiceTarget](raw)
	if err != nil {
		return nil, fmt.Errorf(errFmtDecodeResponse, apiProfiles, err)
	}

	for i := range profiles {
		profiles[i].Kind = core.VoiceTypeProfile
	}

	return profiles, nil
}

// ListClones fetches the caller's voice clones.
func (c *Client) ListClones(ctx context.Context) ([]core.VoiceTarget, error) {
	var raw json.RawMessage

	err := c.doJSON(ctx, http.MethodGet, apiClones, nil, &raw)
	if err != nil {
		return nil, err
	}

	clones, err := decodeList[core.VoiceTarget](raw)
	if err != nil {
		return nil, fmt.Errorf(errFmtDecodeResponse, apiClones, err)
	}

	for i := range clones {
		clones[i].Kind = core.VoiceTypeClone
	}

	return clones, nil
}

// DeleteClone removes a voice clone.
func (c *Client) DeleteClone(ctx context.Context, id core.TargetID) error {
	return c.doJSON(ctx, http.MethodDelete, apiClones+id.String()+"/", nil, nil)
}

// generatePayload is the wire form of a generation request. Exactly one of the
// identifiers is set.
type generatePayload struct {
	Text           string         `json:"text"`
	VoiceProfileID *core.TargetID `json:"voice_profile_id,omitempty"`
	VoiceCloneID   *core.TargetID `json:"voice_clone_id,omitempty"`
}

// Generate asks the backend to synthesize speech for one voice target.
func (c *Client) Generate(ctx context.Context, req core.GenerationRequest) (core.GenerationResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return core.GenerationResult{}, ErrTextEmpty
	}

	targetID := req.TargetID
	payload := generatePayload{Text: req.Text}

	switch req.VoiceType {
	case core.VoiceTypeProfile:
		payload.VoiceProfileID = &targetID
	case core.VoiceTypeClone:
		payload.VoiceCloneID = &targetID
	default:
		return core.GenerationResult{}, fmt.Errorf(errFmtUnknownVoiceType, ErrUnknownVoiceType, req.VoiceType)
	}

	var result core.GenerationResult

	err := c.doJSON(ctx, http.MethodPost, apiGenerate, payload, &result)
	if err != nil {
		return core.GenerationResult{}, err
	}

	return result, nil
}

type translatePayload struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
	SourceLanguage string `json:"source_language"`
}

// Translate requests a translation of text. The source language defaults to
// automatic detection.
func (c *Client) Translate(
	ctx context.Context,
	text string,
	cfg core.TranslationConfig,
) (core.TranslationResponse, error) {
	if text == "" {
		return core.TranslationResponse{}, ErrTextEmpty
	}

	if cfg.TargetLanguage == "" {
		return core.TranslationResponse{}, ErrTargetLanguage
	}

	source := cfg.SourceLanguage
	if source == "" {
		source = defaultSourceLanguage
	}

	payload := translatePayload{
		Text:           text,
		TargetLanguage: cfg.TargetLanguage,
		SourceLanguage: source,
	}

	var resp core.TranslationResponse

	err := c.doJSON(ctx, http.MethodPost, apiTranslate, payload, &resp)
	if err != nil {
		return core.TranslationResponse{}, err
	}

	return resp, nil
}

// ListHistory fetches the generation history persisted by the backend.
func (c *Client) ListHistory(ctx context.Context) ([]core.GenerationResult, error) {
	var raw json.RawMessage

	err := c.doJSON(ctx, http.MethodGet, apiHistory, nil, &raw)
	if err != nil {
		return nil, err
	}

	history, err := decodeList[core.GenerationResult](raw)
	if err != nil {
		return nil, fmt.Errorf(errFmtDecodeResponse, apiHistory, err)
	}

	return history, nil
}

// DeleteHistory deletes one persisted generation result.
func (c *Client) DeleteHistory(ctx context.Context, id core.ResultID) error {
	if !id.Valid() {
		return ErrInvalidResultID
	}

	return c.doJSON(ctx, http.MethodDelete, apiHistory+id.String()+"/", nil, nil)
}

// AudioURL resolves an audio locator. Locators carrying a scheme are used
// verbatim; everything else is resolved against the base URL. The boolean is
// false when the locator is empty.
func (c *Client) AudioURL(locator string) (string, bool) {
	return ResolveAudioURL(c.baseURL, locator)
}

// ResolveAudioURL resolves locator against baseURL. Any locator with a
// scheme (http, file, data, blob, ...) is returned unchanged. Single-letter
// schemes are Windows drive letters and count as paths.
func ResolveAudioURL(baseURL, locator string) (string, bool) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", false
	}

	parsed, err := url.Parse(locator)
	if err == nil && len(parsed.Scheme) > 1 {
		return locator, true
	}

	if !strings.HasPrefix(locator, "/") {
		locator = "/" + locator
	}

	return strings.TrimRight(baseURL, "/") + locator, true
}

// FetchAudio downloads the clip at an already resolved URL.
func (c *Client) FetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf(errFmtCreateRequest, http.MethodGet, audioURL, err)
	}

	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf(errFmtSendRequest, audioURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, parseErrorResponse(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadAudio, audioURL, err)
	}

	if len(data) == 0 {
		return nil, ErrReceivedNoAudio
	}

	return data, nil
}

// doJSON sends a request with an optional JSON body and decodes a JSON reply
// into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf(errFmtMarshalRequest, path, err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf(errFmtCreateRequest, method, path, err)
	}

	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	req.Header.Set(headerAccept, contentTypeJSON)

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(errFmtSendRequest, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return parseErrorResponse(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf(errFmtDecodeResponse, req.URL.Path, err)
	}

	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set(headerAuthorization, bearerPrefix+c.authToken)
	}
}

// parseErrorResponse attempts to decode a structured JSON error from the
// service, falling back to the raw body so diagnostics are preserved.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	statusErr := &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}

	var errorResp errorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil {
		statusErr.Detail = errorResp.Detail
		if statusErr.Detail == "" {
			statusErr.Detail = errorResp.Error
		}
	}

	return statusErr
}

func addFilter(query url.Values, key, value string) {
	if value == "" || value == filterAll {
		return
	}

	query.Set(key, value)
}
