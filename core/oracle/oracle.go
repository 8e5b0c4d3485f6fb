// Package oracle asks a chat-completions endpoint to infer title, artist and
// album from a file name when the embedded tags are unusable.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ankit-chaubey/id3-surgery/core"
)

// ErrEmptyResponse means the endpoint answered without usable content.
var ErrEmptyResponse = errors.New("oracle returned no usable metadata")

const systemPrompt = `You restore music metadata from file names. ` +
	`Reply with a single JSON object {"title": "...", "artist": "...", "album": "..."}. ` +
	`Use an empty string for anything you cannot infer. Keep names in their original script; ` +
	`do not translate or romanize Japanese.`

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
	log      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a Client for endpoint authenticated with apiKey.
func New(endpoint, apiKey, model string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		http:     http.DefaultClient,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ core.Oracle = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

// Guess asks the endpoint about filename and its parent folder. Deadlines
// come from ctx.
func (c *Client) Guess(ctx context.Context, filename, folder string) (core.Guess, error) {
	prompt := "File name: " + filename
	if folder != "" {
		prompt += "\nParent folder: " + folder
	}
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return core.Guess{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return core.Guess{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return core.Guess{}, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return core.Guess{}, fmt.Errorf("read oracle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return core.Guess{}, fmt.Errorf("oracle status %d: %s", resp.StatusCode, msg)
	}

	g, err := ParseGuess(gjson.GetBytes(raw, "choices.0.message.content").String())
	if err != nil {
		return core.Guess{}, err
	}
	c.log.Debug("oracle guess",
		zap.String("file", filename),
		zap.String("title", g.Title),
		zap.String("artist", g.Artist),
		zap.String("album", g.Album))
	return g, nil
}

// ParseGuess extracts a Guess from model output, tolerating a Markdown code
// fence around the JSON object.
func ParseGuess(content string) (core.Guess, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" || !gjson.Valid(content) {
		return core.Guess{}, ErrEmptyResponse
	}
	r := gjson.Parse(content)
	if !r.IsObject() {
		return core.Guess{}, ErrEmptyResponse
	}
	g := core.Guess{
		Title:  strings.TrimSpace(r.Get("title").String()),
		Artist: strings.TrimSpace(r.Get("artist").String()),
		Album:  strings.TrimSpace(r.Get("album").String()),
	}
	if g.Empty() {
		return g, ErrEmptyResponse
	}
	return g, nil
}
