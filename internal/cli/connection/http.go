package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/filelink-go/internal/infra/buildinfo"
)

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL    string
	client     *http.Client
	adminToken string
}

// NewHTTPClient creates a new HTTP client.
func NewHTTPClient(server, adminToken string) *HTTPClient {
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &HTTPClient{
		baseURL:    baseURL,
		adminToken: adminToken,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

// addHeaders adds authentication and common headers.
func (c *HTTPClient) addHeaders(req *http.Request) {
	if c.adminToken != "" && strings.HasPrefix(req.URL.Path, "/admin/") {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent("filelink-cli"))
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// APIError is an error envelope returned by the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Details   any
	RequestID string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if d, ok := e.Details.(string); ok && d != "" {
		msg += ": " + d
	}
	return msg
}

type envelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Details   any             `json:"details"`
}

// ParseResponse decodes the envelope of resp and unmarshals its data into
// target. Error statuses become *APIError.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 400 {
		if decodeErr == nil && env.Code != "" {
			return &APIError{
				Status:    resp.StatusCode,
				Code:      env.Code,
				Message:   env.Message,
				Details:   env.Details,
				RequestID: env.RequestID,
			}
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("parse response: %w", decodeErr)
	}

	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return fmt.Errorf("parse response data: %w", err)
		}
	}
	return nil
}

// ReadBody returns the raw body of a successful response, e.g. an image.
func ReadBody(resp *http.Response) ([]byte, error) {
	if resp.StatusCode >= 400 {
		return nil, ParseResponse(resp, nil)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
