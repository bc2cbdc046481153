package network

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
)

// ProtocolVersion is the tus protocol version spoken by this client.
const ProtocolVersion = "1.0.0"

const (
	headerTusResumable = "Tus-Resumable"
	headerTusVersion   = "Tus-Version"
	headerUploadLength = "Upload-Length"
	headerUploadMeta   = "Upload-Metadata"
	headerUploadOffset = "Upload-Offset"

	contentTypeOffsetStream = "application/offset+octet-stream"
)

// Client performs the individual tus requests of a resumable upload:
// session creation, offset probing and chunk transmission.
type Client struct {
	httpClient *http.Client
	endpoint   string
	logger     log.Logger
}

// NewClient ...
func NewClient(endpoint string, httpClient *http.Client, logger log.Logger) *Client {
	if httpClient == nil {
		httpClient = DefaultHTTPClient()
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		logger:     logger,
	}
}

// DefaultHTTPClient creates an HTTP client for chunked uploads.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		// No client-level timeout, cancellation is handled via request contexts
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     10 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}

// CreateUpload negotiates a new upload session with the server and returns
// the session URL. The filename travels base64-encoded as upload metadata.
func (c *Client) CreateUpload(ctx context.Context, size int64, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerTusResumable, ProtocolVersion)
	req.Header.Set(headerUploadLength, strconv.FormatInt(size, 10))
	req.Header.Set(headerUploadMeta, fmt.Sprintf("filename %s", base64.StdEncoding.EncodeToString([]byte(filename))))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer c.closeBody(resp.Body)

	location := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusCreated || location == "" {
		return "", fmt.Errorf("%s (HTTP %d)", creationFailureMessage(resp.Body), resp.StatusCode)
	}

	return location, nil
}

// Offset asks the server how many bytes it has already accepted for the
// session.
func (c *Client) Offset(ctx context.Context, uploadURL string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uploadURL, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerTusResumable, ProtocolVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe offset: %w", err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("probe offset: HTTP %d", resp.StatusCode)
	}

	offset, err := parseOffset(resp.Header.Get(headerUploadOffset))
	if err != nil {
		return 0, fmt.Errorf("probe offset: %w", err)
	}
	return offset, nil
}

// SendChunk transmits one contiguous byte range at the given offset and
// returns the server's new accepted offset. The server's value is
// authoritative over offset+len(data).
func (c *Client) SendChunk(ctx context.Context, uploadURL string, offset int64, data []byte) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, uploadURL, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerTusResumable, ProtocolVersion)
	req.Header.Set("Content-Type", contentTypeOffsetStream)
	req.Header.Set(headerUploadOffset, strconv.FormatInt(offset, 10))
	req.ContentLength = int64(len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send chunk at offset %d: %w", offset, err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode != http.StatusNoContent {
		return 0, fmt.Errorf("send chunk at offset %d failed with status %d: %s", offset, resp.StatusCode, readBodySnippet(resp.Body))
	}

	newOffset, err := parseOffset(resp.Header.Get(headerUploadOffset))
	if err != nil {
		return 0, fmt.Errorf("send chunk at offset %d: %w", offset, err)
	}
	return newOffset, nil
}

func (c *Client) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Printf(err.Error())
	}
}

// creationFailureMessage builds the user-facing reason for a failed session
// creation: a structured {"error": "..."} body wins, then the raw body text,
// then a generic message.
func creationFailureMessage(body io.Reader) string {
	raw, err := io.ReadAll(body)
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return "upload creation failed"
	}

	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return string(bytes.TrimSpace(raw))
}

func readBodySnippet(body io.Reader) string {
	snippet := make([]byte, 1024)
	n, _ := io.ReadAtLeast(body, snippet, 1)
	return string(snippet[:n])
}

func parseOffset(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("no %s header in response", headerUploadOffset)
	}
	offset, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s header %q: %w", headerUploadOffset, value, err)
	}
	if offset < 0 {
		return 0, fmt.Errorf("negative %s header: %d", headerUploadOffset, offset)
	}
	return offset, nil
}
