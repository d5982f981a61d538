// Package embedding talks to the face embedding server that turns camera
// frames into face descriptors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	defaultTimeout      = 30 * time.Second
)

// Client computes face descriptors using the embedding server.
type Client struct {
	baseURL   string
	client    *http.Client
	maxSize   int
	quality   int
	skipScale bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithFrameSize sets the longest edge frames are scaled down to before upload.
// Zero disables scaling.
func WithFrameSize(px, jpegQuality int) Option {
	return func(c *Client) {
		c.maxSize = px
		c.quality = jpegQuality
		c.skipScale = px <= 0
	}
}

// NewClient creates a new embedding client.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		maxSize: defaultMaxFrameSize,
		quality: defaultJPEGQuality,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// faceDetection is a single face in the embedding server response.
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"`
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the response of the face embedding endpoint.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Ready checks that the server is up and its model is loaded.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("embedding server not ready (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Detect finds faces in frame and returns their descriptors in the order
// reported by the server. No faces is an empty slice, not an error.
func (c *Client) Detect(ctx context.Context, frame []byte) ([]facematch.Detection, error) {
	data := frame
	if !c.skipScale {
		scaled, err := PrepareFrame(frame, c.maxSize, c.quality)
		if err != nil {
			return nil, err
		}
		data = scaled
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", data)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	detections := make([]facematch.Detection, 0, len(faceResp.Faces))
	for _, f := range faceResp.Faces {
		detections = append(detections, facematch.Detection{
			Descriptor: facematch.Descriptor(f.Embedding),
			BBox:       f.BBox,
			Score:      f.DetScore,
		})
	}
	return detections, nil
}

// postMultipartImage posts the image as a multipart "file" field.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", DetectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// DetectMIMEType sniffs the image format from magic bytes.
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}
	return "application/octet-stream"
}
