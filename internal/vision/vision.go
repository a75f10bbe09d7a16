// Package vision exposes the three operations the organizer needs from a
// multimodal model: describe the single most prominent person, detect every
// person, and score the similarity of two gear descriptions. A pluggable
// Backend does the transport; this package owns prompts, retry, response
// extraction, and call accounting.
package vision

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// ============================================================================
// Vision Client
// ============================================================================

// Client wraps a Backend with per-call timeouts, linear-backoff retry for
// transient failures, and response extraction.
type Client struct {
	backend Backend

	timeout    time.Duration
	attempts   int
	retryDelay time.Duration

	describeCalls atomic.Int64
	detectCalls   atomic.Int64
	compareCalls  atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetry sets the retry budget: attempts additional tries after the
// first, spaced delay, 2*delay, 3*delay apart.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.retryDelay = delay
	}
}

// NewClient creates a vision client over the given backend.
func NewClient(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend:    backend,
		timeout:    60 * time.Second,
		attempts:   3,
		retryDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the backend.
func (c *Client) Close() error {
	return c.backend.Close()
}

// Backend returns the provider label for logging.
func (c *Client) Backend() string {
	return c.backend.Name()
}

// Stats returns a snapshot of backend calls issued so far.
func (c *Client) Stats() CallStats {
	return CallStats{
		Describe: c.describeCalls.Load(),
		Detect:   c.detectCalls.Load(),
		Compare:  c.compareCalls.Load(),
	}
}

// DescribeOneFace returns the canonical gear description of the most
// prominent person in the image, suitable for storage as a roster
// description.
func (c *Client) DescribeOneFace(ctx context.Context, img *Payload) (string, error) {
	c.describeCalls.Add(1)
	text, err := c.generate(ctx, "describe", describeFacePrompt, img)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// DetectAllSubjects returns one detection per person found in the image.
// An empty slice is a valid result: nobody was found.
func (c *Client) DetectAllSubjects(ctx context.Context, img *Payload) ([]SubjectDetection, error) {
	c.detectCalls.Add(1)
	text, err := c.generate(ctx, "detect", detectSubjectsPrompt, img)
	if err != nil {
		return nil, err
	}
	return parseDetections(text)
}

// CompareTwoDescriptions scores the similarity of two gear descriptions in
// [0, 1]. Scores outside the range are clamped.
func (c *Client) CompareTwoDescriptions(ctx context.Context, description1, description2 string) (Comparison, error) {
	c.compareCalls.Add(1)
	text, err := c.generate(ctx, "compare", buildComparePrompt(description1, description2), nil)
	if err != nil {
		return Comparison{}, err
	}
	return parseComparison(text)
}

// generate runs one backend call with retry. Transient failures are retried
// with linearly growing delays; fatal failures return immediately.
func (c *Client) generate(ctx context.Context, op, prompt string, img *Payload) (string, error) {
	var text string

	attempt := 0
	call := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		out, err := c.backend.Generate(callCtx, prompt, img)
		if err != nil {
			classified := classifyErr(err)
			if !classified.Transient() {
				return backoff.Permanent(classified)
			}
			log.Debugf("vision %s attempt %d failed: %v", op, attempt, classified)
			return classified
		}
		text = out
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newLinearBackOff(c.retryDelay), uint64(c.attempts)),
		ctx,
	)
	if err := backoff.Retry(call, policy); err != nil {
		return "", err
	}
	return text, nil
}

// linearBackOff waits delay, 2*delay, 3*delay, ... between retries.
type linearBackOff struct {
	delay   time.Duration
	retries int
}

func newLinearBackOff(delay time.Duration) *linearBackOff {
	return &linearBackOff{delay: delay}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.retries++
	return time.Duration(b.retries) * b.delay
}

func (b *linearBackOff) Reset() {
	b.retries = 0
}
