// Package turnfeed subscribes to the conversational backend's avatar event
// stream over SSE and feeds turns and speech playback into the avatar.
package turnfeed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/avatarcore/internal/avatar"
	"github.com/normanking/avatarcore/internal/avatar3d"
	"github.com/normanking/avatarcore/internal/bus"
	"github.com/normanking/avatarcore/internal/observe"
)

// Event names on the stream.
const (
	EventTurn      = "turn"
	EventSpeech    = "speech"
	EventSpeechEnd = "speech_end"
	EventReset     = "reset"
)

// Sink receives decoded events. *avatar.Controller satisfies it.
type Sink interface {
	ApplyTurn(t avatar.Turn) avatar3d.Emotion
	StartSpeaking(analyser avatar3d.FrequencyAnalyser)
	StopSpeaking()
	Reset()
}

type Config struct {
	URL            string        `mapstructure:"url"`
	Path           string        `mapstructure:"path"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	// AnalyserSize is the expected magnitude snapshot length.
	AnalyserSize int `mapstructure:"analyser_size"`
}

func DefaultConfig() Config {
	return Config{
		URL:            "http://localhost:8080",
		Path:           "/api/v1/avatar/events",
		InitialBackoff: 3 * time.Second,
		MaxBackoff:     60 * time.Second,
		AnalyserSize:   128,
	}
}

// speechPayload carries one frequency-magnitude snapshot of the playing
// audio. Magnitudes are base64 in JSON.
type speechPayload struct {
	Magnitudes []byte `json:"magnitudes"`
}

type Client struct {
	cfg      Config
	sink     Sink
	logger   zerolog.Logger
	client   *http.Client
	analyser *avatar3d.SnapshotAnalyser
	bus      *bus.EventBus
	metrics  *observe.Metrics

	mu        sync.RWMutex
	connected bool
	speaking  bool
	cancel    context.CancelFunc
	done      chan struct{}
}

type Option func(*Client)

func WithBus(b *bus.EventBus) Option {
	return func(c *Client) { c.bus = b }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func NewClient(cfg Config, sink Sink, logger zerolog.Logger, opts ...Option) *Client {
	d := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = d.Path
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = d.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.AnalyserSize <= 0 {
		cfg.AnalyserSize = d.AnalyserSize
	}
	cfg.URL = strings.TrimSuffix(cfg.URL, "/")

	c := &Client{
		cfg:      cfg,
		sink:     sink,
		logger:   logger.With().Str("component", "turnfeed").Logger(),
		client:   &http.Client{Timeout: 0}, // SSE streams never time out
		analyser: avatar3d.NewSnapshotAnalyser(cfg.AnalyserSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the reconnecting stream loop in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("turn feed already connected")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.connectLoop(ctx, c.done)
	return nil
}

// Disconnect stops the loop and waits for it to exit.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) connectLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	backoff := c.cfg.InitialBackoff
	consecutiveFailures := 0

	for {
		err := c.connectSSE(ctx)
		c.setConnected(false)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			consecutiveFailures++
			if consecutiveFailures == 3 {
				c.logger.Warn().
					Err(err).
					Int("failures", consecutiveFailures).
					Msg("Turn feed unavailable, will keep retrying quietly")
			} else if consecutiveFailures < 3 {
				c.logger.Warn().Err(err).Msg("Turn feed connection failed, reconnecting")
			} else {
				c.logger.Debug().Err(err).Int("failures", consecutiveFailures).Msg("Turn feed still unavailable")
			}
		} else {
			backoff = c.cfg.InitialBackoff
			consecutiveFailures = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if err != nil {
			backoff *= 2
			if backoff > c.cfg.MaxBackoff {
				backoff = c.cfg.MaxBackoff
			}
		}
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	was := c.connected
	c.connected = v
	speaking := c.speaking
	if !v {
		c.speaking = false
	}
	c.mu.Unlock()

	if was == v {
		return
	}
	if v {
		c.logger.Info().Msg("Connected to turn feed")
		c.publish(bus.EventTypeFeedConnected)
		return
	}
	// Playback state is unknown once the stream drops.
	if speaking {
		c.sink.StopSpeaking()
	}
	c.publish(bus.EventTypeFeedDisconnected)
}

func (c *Client) connectSSE(ctx context.Context) error {
	url := c.cfg.URL + c.cfg.Path
	c.logger.Debug().Str("url", url).Msg("Connecting to turn feed")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		return fmt.Errorf("unexpected content-type: %s (expected text/event-stream)", ct)
	}

	c.setConnected(true)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var dataLines []string
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "" && (len(dataLines) > 0 || eventType != ""):
			c.handleEvent(eventType, strings.Join(dataLines, "\n"))
			eventType = ""
			dataLines = nil
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (c *Client) handleEvent(eventType, data string) {
	if c.metrics != nil {
		c.metrics.RecordFeedEvent(context.Background(), eventType)
	}

	switch eventType {
	case EventTurn:
		var turn avatar.Turn
		if err := json.Unmarshal([]byte(data), &turn); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to parse turn event")
			return
		}
		c.sink.ApplyTurn(turn)

	case EventSpeech:
		var payload speechPayload
		if data != "" {
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to parse speech event")
				return
			}
		}
		if len(payload.Magnitudes) > 0 {
			c.analyser.Update(payload.Magnitudes)
		}

		c.mu.Lock()
		start := !c.speaking
		c.speaking = true
		c.mu.Unlock()
		if start {
			c.sink.StartSpeaking(c.analyser)
		}

	case EventSpeechEnd:
		c.mu.Lock()
		c.speaking = false
		c.mu.Unlock()
		c.analyser.Update(nil)
		c.sink.StopSpeaking()

	case EventReset:
		c.mu.Lock()
		c.speaking = false
		c.mu.Unlock()
		c.sink.Reset()

	default:
		c.logger.Debug().Str("type", eventType).Msg("Unknown event type")
	}
}

// CheckHealth probes the backend's avatar health endpoint.
func (c *Client) CheckHealth(ctx context.Context) error {
	url := c.cfg.URL + "/api/v1/avatar/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) publish(t bus.EventType) {
	if c.bus != nil {
		c.bus.Publish(bus.Event{Type: t, Data: map[string]any{"url": c.cfg.URL}})
	}
}
