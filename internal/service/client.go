// Package service talks to the remote mesh analysis service.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/philipparndt/canalview/version"
)

// DefaultEndpoint is the analysis service on its default local port
const DefaultEndpoint = "http://localhost:8000/analyze"

// GenericMessage is shown when a failure carries no server message
const GenericMessage = "Error."

var errMissing = errors.New("missing")

// RequestError is a transport failure or a non-success response
type RequestError struct {
	Status  int    // HTTP status, 0 for transport failures
	Message string // server-supplied message or GenericMessage
	Err     error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis request failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("analysis request failed (status %d): %s", e.Status, e.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }

// PayloadError reports a response that is missing or has malformed fields
type PayloadError struct {
	Field string
	Err   error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("malformed analysis response: %s: %v", e.Field, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// Upload is a named mesh file
type Upload struct {
	Name string
	Data []byte
}

// Client posts mesh pairs to the analysis endpoint
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a client. A nil httpClient uses http.DefaultClient; no
// request timeout is applied beyond the caller's context.
func New(endpoint string, httpClient *http.Client) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// Endpoint returns the analysis URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Analyze uploads both meshes and decodes the result. The HTTP status
// decides success; the body is only trusted on 2xx.
func (c *Client) Analyze(ctx context.Context, right, left Upload) (*Result, error) {
	body, contentType, err := encodeUploads(right, left)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", version.UserAgent())

	log := slog.With("request_id", requestID, "endpoint", c.endpoint)
	log.Info("submitting analysis", "right", right.Name, "left", left.Name)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("analysis request failed", "error", err)
		return nil, &RequestError{Message: GenericMessage, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Status: resp.StatusCode, Message: GenericMessage, Err: err}
	}
	log.Info("analysis response", "status", resp.StatusCode, "bytes", len(data), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{Status: resp.StatusCode, Message: serverMessage(data)}
	}

	result, message, err := decodeResult(data)
	if err != nil {
		log.Warn("malformed analysis response", "error", err)
		return nil, err
	}
	if result == nil {
		return nil, &RequestError{Status: resp.StatusCode, Message: message}
	}
	return result, nil
}

// serverMessage extracts {"error": "..."} or falls back to GenericMessage
func serverMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return GenericMessage
	}
	return payload.Error
}

func encodeUploads(right, left Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, part := range []struct {
		field  string
		upload Upload
	}{
		{"right", right},
		{"left", left},
	} {
		fw, err := w.CreateFormFile(part.field, part.upload.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(part.upload.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
