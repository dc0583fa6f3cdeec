package realtime

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/FalconCode786/Minmeet/internal/minutes"
)

// Mode identifies the active transport
type Mode string

const (
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

// connState represents the client's connection state machine
type connState int

const (
	stateDisconnected connState = iota
	stateConnectingPush
	stateStreamingPush
	statePolling
	stateStopped
)

// Handler receives every parsed update, pushed or polled
type Handler func(*minutes.Update)

// Config contains sync client configuration
type Config struct {
	BaseURL      string
	PollInterval time.Duration
}

// State is a snapshot of the client's transport state
type State struct {
	Mode       Mode      `json:"mode"`
	Healthy    bool      `json:"healthy"`
	LastUpdate time.Time `json:"last_update"`
}

// Stats represents sync client statistics
type Stats struct {
	PushUpdates uint64 `json:"push_updates"`
	PollUpdates uint64 `json:"poll_updates"`
	PollErrors  uint64 `json:"poll_errors"`
	ParseErrors uint64 `json:"parse_errors"`
	FellBack    bool   `json:"fell_back"`
}

// Client keeps local state synchronized with the meeting service. It owns
// the active transport connection exclusively.
type Client struct {
	config     Config
	logger     *slog.Logger
	httpClient *http.Client

	state      connState
	handler    Handler
	meetingID  string
	healthy    bool
	lastUpdate time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Statistics
	pushUpdates uint64
	pollUpdates uint64
	pollErrors  uint64
	parseErrors uint64
	fellBack    bool

	mu sync.Mutex
}

// NewClient creates a sync client for the given service
func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.PollInterval <= 0 {
		config.PollInterval = 3 * time.Second
	}

	// The stream connection is long-lived and poll latency is unbounded, so
	// the client carries no request timeout; cancellation comes from Stop.
	return &Client{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{},
	}, nil
}

// Start connects the push stream for the given meeting and begins forwarding
// updates to the handler. On connection failure or any later stream error
// the client falls back to polling and stays there.
func (c *Client) Start(meetingID string, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateDisconnected {
		return fmt.Errorf("sync client already started")
	}

	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	c.meetingID = meetingID
	c.handler = handler
	c.state = stateConnectingPush

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()

	return nil
}

// run drives the transport state machine until cancelled
func (c *Client) run(ctx context.Context) {
	resp, err := c.openStream(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("Push stream connection failed, falling back to polling",
			slog.String("meeting_id", c.meetingID),
			slog.String("error", err.Error()),
		)
		c.fallback(ctx)
		return
	}

	c.setState(stateStreamingPush, true)
	c.logger.Info("Push stream connected",
		slog.String("meeting_id", c.meetingID),
	)

	streamErr := c.readStream(ctx, resp)
	if ctx.Err() != nil {
		return
	}

	c.logger.Warn("Push stream lost, falling back to polling",
		slog.String("meeting_id", c.meetingID),
		slog.String("error", streamErr.Error()),
	)
	c.fallback(ctx)
}

// openStream issues the push-stream request
func (c *Client) openStream(ctx context.Context) (*http.Response, error) {
	url := fmt.Sprintf("%s/api/meetings/%s/stream", c.config.BaseURL, c.meetingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream connection failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned HTTP %d", resp.StatusCode)
	}

	return resp, nil
}

// readStream consumes server-sent events until the stream breaks or the
// context is cancelled. The response body is closed exactly once, here.
func (c *Client) readStream(ctx context.Context, resp *http.Response) error {
	defer resp.Body.Close()

	// Close the body when cancelled so the blocking read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			resp.Body.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if len(data) > 0 {
				c.dispatch(strings.Join(data, "\n"), ModePush)
				data = data[:0]
			}
			continue
		}

		if strings.HasPrefix(line, "data:") {
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// Other SSE fields (event, id, retry) and comments are ignored.
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}

	return fmt.Errorf("stream closed by server")
}

// fallback switches to the polling transport for good
func (c *Client) fallback(ctx context.Context) {
	c.mu.Lock()
	c.fellBack = true
	c.mu.Unlock()

	c.setState(statePolling, false)

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

// poll issues one full-state fetch and forwards the result
func (c *Client) poll(ctx context.Context) {
	url := fmt.Sprintf("%s/api/meetings/%s/minutes", c.config.BaseURL, c.meetingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.recordPollError(err)
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			c.recordPollError(err)
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.recordPollError(fmt.Errorf("poll returned HTTP %d", resp.StatusCode))
		return
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordPollError(err)
		return
	}

	c.dispatch(string(respBody), ModePoll)
}

// dispatch parses one payload and forwards it to the handler
func (c *Client) dispatch(payload string, mode Mode) {
	update, err := minutes.ParseUpdate([]byte(payload))
	if err != nil {
		c.mu.Lock()
		c.parseErrors++
		c.mu.Unlock()

		c.logger.Warn("Dropping malformed update payload",
			slog.String("transport", string(mode)),
			slog.String("error", err.Error()),
		)
		return
	}

	c.mu.Lock()
	c.healthy = true
	c.lastUpdate = time.Now()
	switch mode {
	case ModePush:
		c.pushUpdates++
	case ModePoll:
		c.pollUpdates++
	}
	handler := c.handler
	c.mu.Unlock()

	handler(update)
}

// recordPollError marks the connection unhealthy but keeps polling
func (c *Client) recordPollError(err error) {
	c.mu.Lock()
	c.pollErrors++
	c.healthy = false
	c.mu.Unlock()

	c.logger.Warn("Poll request failed",
		slog.String("meeting_id", c.meetingID),
		slog.String("error", err.Error()),
	)
}

// setState transitions the connection state
func (c *Client) setState(s connState, healthy bool) {
	c.mu.Lock()
	if c.state != stateStopped {
		c.state = s
		c.healthy = healthy
	}
	c.mu.Unlock()
}

// Stop tears down the active transport. Repeated calls are safe no-ops.
func (c *Client) Stop() {
	c.mu.Lock()

	if c.state == stateStopped || c.state == stateDisconnected {
		c.mu.Unlock()
		return
	}

	c.state = stateStopped
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.logger.Info("Sync client stopped",
		slog.String("meeting_id", c.meetingID),
	)
}

// State returns a snapshot of the transport state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	mode := ModePush
	if c.state == statePolling {
		mode = ModePoll
	}

	return State{
		Mode:       mode,
		Healthy:    c.healthy,
		LastUpdate: c.lastUpdate,
	}
}

// GetStats returns current sync client statistics
func (c *Client) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		PushUpdates: c.pushUpdates,
		PollUpdates: c.pollUpdates,
		PollErrors:  c.pollErrors,
		ParseErrors: c.parseErrors,
		FellBack:    c.fellBack,
	}
}
