package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultAPIVersion = "2025-01"
	defaultTimeout    = 10 * time.Second
)

var (
	// ErrProductNotFound signals that the catalog has no product for the given id.
	ErrProductNotFound = errors.New("shopify: product not found")
	// ErrUnexpectedStatus signals a non-2xx response from Shopify.
	ErrUnexpectedStatus = errors.New("shopify: unexpected response status")
	// ErrUnauthorized signals that Shopify rejected the access token, e.g. after a reinstall.
	ErrUnauthorized = errors.New("shopify: access token rejected")
)

// Options configures the Admin API client.
type Options struct {
	APIKey     string
	APISecret  string
	APIVersion string
	Timeout    time.Duration
	// BaseURL overrides https://{shop} as the request origin.
	BaseURL string
}

// Client talks to the Shopify Admin API on behalf of the app.
type Client struct {
	apiKey     string
	apiSecret  string
	apiVersion string
	timeout    time.Duration
	baseURL    string
}

// NewClient builds a Client, filling defaults for version and timeout.
func NewClient(opts Options) *Client {
	version := opts.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     opts.APIKey,
		apiSecret:  opts.APISecret,
		apiVersion: version,
		timeout:    timeout,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
	}
}

func (c *Client) origin(shop string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + shop
}

// postJSON sends body as JSON and decodes a 2xx response into out.
// ctx is checked before sending and its deadline caps the request timeout; the fiber
// agent cannot abort a request already in flight, so cancellation mid-request waits
// for that timeout.
func (c *Client) postJSON(ctx context.Context, url string, headers map[string]string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(url).
		Timeout(timeout).
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON).
		JSON(body)
	for k, v := range headers {
		agent.Set(k, v)
	}

	status, payload, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("shopify: request %s: %w", url, errors.Join(errs...))
	}
	if status == fiber.StatusUnauthorized {
		return fmt.Errorf("%w: %w: %d", ErrUnauthorized, ErrUnexpectedStatus, status)
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("shopify: decode response: %w", err)
	}
	return nil
}
