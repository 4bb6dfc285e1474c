// ABOUTME: HTTP client for the org REST API
// ABOUTME: Wraps query, user-info and push-device calls with error handling for CLI and TUI use

package client

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
)

// DefaultTimeout bounds every request issued through a client built by NewHTTPClient.
const DefaultTimeout = 30 * time.Second

// Client is the API client for one org instance
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// New creates a new API client for the instance URL. httpClient carries the
// authorization; a nil httpClient gets an unauthenticated default.
func New(instanceURL, apiVersion string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient(nil)
	}
	return &Client{
		baseURL:    strings.TrimRight(instanceURL, "/"),
		apiVersion: apiVersion,
		httpClient: httpClient,
	}
}

// NewHTTPClient returns an http.Client with the default timeout whose requests
// are logged. A nil base uses http.DefaultTransport.
func NewHTTPClient(base http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: NewLoggingTransport(base),
	}
}

// BaseURL returns the instance URL requests are sent to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Attributes is the type/url envelope the API attaches to every record
type Attributes struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Record is a row returned by a query. Only Id and Name are selected by default.
type Record struct {
	Attributes *Attributes `json:"attributes,omitempty"`
	ID         string      `json:"Id"`
	Name       string      `json:"Name"`
}

// QueryResponse represents the /query endpoint response
type QueryResponse struct {
	TotalSize      int      `json:"totalSize"`
	Done           bool     `json:"done"`
	NextRecordsURL string   `json:"nextRecordsUrl,omitempty"`
	Records        []Record `json:"records"`
}

// UserInfo represents the /services/oauth2/userinfo response
type UserInfo struct {
	UserID            string `json:"user_id"`
	OrganizationID    string `json:"organization_id"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
}

// PushDevice is the registration payload for a push-notification device
type PushDevice struct {
	ConnectionToken string `json:"ConnectionToken"`
	ServiceType     string `json:"ServiceType"`
}

// APIError is an error response from the REST API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (status %d): %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is an API 401
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Query calls GET /services/data/vXX.X/query with the given SOQL
func (c *Client) Query(ctx context.Context, soql string) (*QueryResponse, error) {
	endpoint := c.dataPath("/query") + "?" + url.Values{"q": {soql}}.Encode()

	var resp QueryResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	if resp.Records == nil {
		resp.Records = []Record{}
	}
	return &resp, nil
}

// QueryMore follows a nextRecordsUrl returned by a previous query
func (c *Client) QueryMore(ctx context.Context, nextRecordsURL string) (*QueryResponse, error) {
	if !strings.HasPrefix(nextRecordsURL, "/services/data/") {
		return nil, fmt.Errorf("invalid nextRecordsUrl %q", nextRecordsURL)
	}

	var resp QueryResponse
	if err := c.do(ctx, http.MethodGet, nextRecordsURL, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	if resp.Records == nil {
		resp.Records = []Record{}
	}
	return &resp, nil
}

// UserInfo calls GET /services/oauth2/userinfo
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	var info UserInfo
	if err := c.do(ctx, http.MethodGet, "/services/oauth2/userinfo", nil, http.StatusOK, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// RegisterPushDevice creates a MobilePushServiceDevice record and returns its id
func (c *Client) RegisterPushDevice(ctx context.Context, device PushDevice) (string, error) {
	body, err := json.Marshal(device)
	if err != nil {
		return "", fmt.Errorf("failed to marshal device: %w", err)
	}

	var created struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
	}
	if err := c.do(ctx, http.MethodPost, c.dataPath("/sobjects/MobilePushServiceDevice"), body, http.StatusCreated, &created); err != nil {
		return "", err
	}
	if !created.Success {
		return "", fmt.Errorf("push device registration was not accepted")
	}
	return created.ID, nil
}

func (c *Client) dataPath(suffix string) string {
	return "/services/data/v" + c.apiVersion + suffix
}

// do sends a request to path and decodes a JSON body into out when the status matches want
func (c *Client) do(ctx context.Context, method, path string, body []byte, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return c.handleErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", c.baseURL, err)
	}
	return nil
}

// handleRequestError converts context errors to user-friendly messages
func (c *Client) handleRequestError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("request canceled: %w", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	return fmt.Errorf("cannot connect to %s: %w", c.baseURL, err)
}

// handleErrorResponse parses API error responses. The REST API returns an
// array of {message, errorCode}; the OAuth endpoints return {error, error_description}.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var list []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		apiErr.Code = list[0].ErrorCode
		apiErr.Message = list[0].Message
		return apiErr
	}

	var oauthErr struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(data, &oauthErr); err == nil && oauthErr.Error != "" {
		apiErr.Code = oauthErr.Error
		apiErr.Message = oauthErr.Description
		return apiErr
	}

	return apiErr
}
