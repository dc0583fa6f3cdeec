package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/FalconCode786/Minmeet/internal/audio"
)

// Config contains meeting service client configuration
type Config struct {
	BaseURL       string
	Timeout       time.Duration // 0 = unbounded
	MaxConcurrent int
}

// Client provides HTTP client functionality for the meeting service API
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{} // Upload concurrency limit

	// Statistics
	totalUploads    uint64
	successUploads  uint64
	failedUploads   uint64
	bytesUploaded   uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// StartResult is the response to a meeting start request
type StartResult struct {
	MeetingID string `json:"meeting_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
}

// StopResult is the completion payload returned by the finalize request
type StopResult struct {
	Status    string `json:"status"`
	MeetingID string `json:"meeting_id"`
	PDFURL    string `json:"pdf_url"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalUploads    uint64        `json:"total_uploads"`
	SuccessUploads  uint64        `json:"success_uploads"`
	FailedUploads   uint64        `json:"failed_uploads"`
	SuccessRate     float64       `json:"success_rate"`
	BytesUploaded   uint64        `json:"bytes_uploaded"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// NewClient creates a meeting service client
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	// A zero timeout is deliberate: requests may pend indefinitely and a
	// stalled request simply never resolves the operation it backs.
	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// StartMeeting creates a new meeting session and returns its id
func (c *Client) StartMeeting(ctx context.Context, title string) (*StartResult, error) {
	body, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return nil, fmt.Errorf("failed to encode start request: %w", err)
	}

	url := c.config.BaseURL + "/api/meetings/start"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("meeting start failed: %w", err)
	}

	var result StartResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse start response: %w", err)
	}

	if result.MeetingID == "" {
		return nil, fmt.Errorf("start response missing meeting_id")
	}

	return &result, nil
}

// UploadChunk transmits one audio segment with its capture metadata.
// There is no retry or backoff: a failed transmission is reported to the
// caller once and the chunk is considered lost. Ordering on the wire is the
// server's concern, not the uploader's.
func (c *Client) UploadChunk(ctx context.Context, meetingID string, chunk audio.Chunk) error {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalUploads()

	body, contentType, err := createChunkForm(chunk)
	if err != nil {
		c.incrementFailedUploads()
		return fmt.Errorf("failed to create upload form: %w", err)
	}

	url := fmt.Sprintf("%s/api/meetings/%s/audio", c.config.BaseURL, meetingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		c.incrementFailedUploads()
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	if _, err := c.do(req); err != nil {
		c.incrementFailedUploads()
		return fmt.Errorf("chunk upload failed: %w", err)
	}

	c.recordUploadSuccess(len(chunk.Data), time.Since(startTime))
	return nil
}

// StopMeeting finalizes the meeting. Failures are surfaced so the caller can
// retry.
func (c *Client) StopMeeting(ctx context.Context, meetingID string) (*StopResult, error) {
	url := fmt.Sprintf("%s/api/meetings/%s/stop", c.config.BaseURL, meetingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stop request: %w", err)
	}

	respBody, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("meeting finalize failed: %w", err)
	}

	var result StopResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse stop response: %w", err)
	}

	return &result, nil
}

// do performs a request and returns the body on any 2xx status
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// createChunkForm builds the multipart/form-data body for a chunk upload
func createChunkForm(chunk audio.Chunk) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := fmt.Sprintf("%s.%s", chunk.ID, chunk.Codec)
	fileWriter, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := fileWriter.Write(chunk.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"timestamp": fmt.Sprintf("%.3f", float64(chunk.Start.UnixNano())/1e9),
		"is_final":  fmt.Sprintf("%t", chunk.IsFinal),
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// Statistics methods
func (c *Client) incrementTotalUploads() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalUploads++
}

func (c *Client) incrementFailedUploads() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedUploads++
}

func (c *Client) recordUploadSuccess(bytes int, responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.successUploads++
	c.bytesUploaded += uint64(bytes)

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalUploads > 0 {
		successRate = float64(c.successUploads) / float64(c.totalUploads) * 100
	}

	return ClientStats{
		TotalUploads:    c.totalUploads,
		SuccessUploads:  c.successUploads,
		FailedUploads:   c.failedUploads,
		SuccessRate:     successRate,
		BytesUploaded:   c.bytesUploaded,
		AvgResponseTime: c.avgResponseTime,
	}
}
