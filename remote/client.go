// Package remote talks to the generation, translation and posts APIs that
// back the compose page.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	predictPath       = "/api/predict"
	translatePath     = "/api/translate"
	generateImagePath = "/api/generate-image"
	postsPath         = "/api/posts"

	// DefaultTimeout bounds every remote call unless overridden.
	DefaultTimeout = 2 * time.Minute

	maxResponseSize = 32 << 20
)

// Non-2xx responses are reported with one fixed error per endpoint.
var (
	ErrPredict       = errors.New("failed to fetch FB post from the GPT model")
	ErrTranslate     = errors.New("failed to fetch translation from the API")
	ErrGenerateImage = errors.New("failed to generate image from the model")
	ErrSubmit        = errors.New("failed to save the post")

	// ErrEmptyResponse is returned when a 2xx payload lacks the expected item.
	ErrEmptyResponse = errors.New("remote: response carried no result")
)

// Client calls the remote APIs rooted at a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger

	timeout    time.Duration
	hasTimeout bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. The client is not
// modified; a WithTimeout option applies to a copy of it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		c.hasTimeout = true
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client for the API at baseURL (e.g. "http://localhost:5000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	switch {
	case c.http == nil:
		timeout := DefaultTimeout
		if c.hasTimeout {
			timeout = c.timeout
		}
		c.http = &http.Client{Timeout: timeout}
	case c.hasTimeout && c.http.Timeout != c.timeout:
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

type predictRequest struct {
	Title     string `json:"title"`
	PrePrompt string `json:"pre_prompt"`
}

type predictResponse struct {
	Predictions []struct {
		Content string `json:"content"`
	} `json:"predictions"`
}

// Predict asks the text model for a post built from title and prePrompt and
// returns the content of the first prediction.
func (c *Client) Predict(ctx context.Context, title, prePrompt string) (string, error) {
	var out predictResponse
	if err := c.postJSON(ctx, predictPath, predictRequest{Title: title, PrePrompt: prePrompt}, &out, ErrPredict); err != nil {
		return "", err
	}
	if len(out.Predictions) == 0 {
		return "", fmt.Errorf("%s: %w", predictPath, ErrEmptyResponse)
	}
	return out.Predictions[0].Content, nil
}

type translateRequest struct {
	Text string `json:"text"`
}

type translateResponse struct {
	Translations []string `json:"translations"`
}

// Translate returns the first translation of text.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	var out translateResponse
	if err := c.postJSON(ctx, translatePath, translateRequest{Text: text}, &out, ErrTranslate); err != nil {
		return "", err
	}
	if len(out.Translations) == 0 {
		return "", fmt.Errorf("%s: %w", translatePath, ErrEmptyResponse)
	}
	return out.Translations[0], nil
}

type generateImageRequest struct {
	Prompt string `json:"prompt"`
}

type generateImageResponse struct {
	ImageBase64 string `json:"imageBase64"`
}

// GenerateImage asks the image model for a picture matching prompt and
// returns the base64 payload as sent by the server.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	var out generateImageResponse
	if err := c.postJSON(ctx, generateImagePath, generateImageRequest{Prompt: prompt}, &out, ErrGenerateImage); err != nil {
		return "", err
	}
	if out.ImageBase64 == "" {
		return "", fmt.Errorf("%s: %w", generateImagePath, ErrEmptyResponse)
	}
	return out.ImageBase64, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any, failure error) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, failure); err != nil {
		return err
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("remote call failed", "path", req.URL.Path, "err", err)
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	c.logger.Debug("remote call", "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start).Round(time.Millisecond))
	return resp, nil
}

func checkStatus(resp *http.Response, failure error) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	return fmt.Errorf("%w (status %d)", failure, resp.StatusCode)
}
