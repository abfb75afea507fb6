package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const pollinationsDefaultTimeout = 40 * time.Second

// PollinationsOptions configures the URL-construction provider.
type PollinationsOptions struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	// VerifyTimeout bounds the availability check when the caller's
	// context carries no deadline.
	VerifyTimeout time.Duration
}

// Pollinations builds deterministic GET URLs for the hosted diffusion
// endpoint and verifies the artifact is actually renderable before
// reporting it usable: the remote may still be rendering server-side when
// the URL is first constructed.
type Pollinations struct {
	baseURL       string
	model         string
	client        *http.Client
	verifyTimeout time.Duration
}

// NewPollinations constructs the provider with sane defaults.
func NewPollinations(opts PollinationsOptions) *Pollinations {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://image.pollinations.ai"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "flux"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.VerifyTimeout
	if timeout <= 0 {
		timeout = pollinationsDefaultTimeout
	}
	return &Pollinations{baseURL: baseURL, model: model, client: client, verifyTimeout: timeout}
}

func (p *Pollinations) Name() string { return "pollinations" }

// Configured is always true: the endpoint needs no credential.
func (p *Pollinations) Configured() bool { return true }

// ImageURL returns the deterministic artifact URL for the request.
func (p *Pollinations) ImageURL(req Request) string {
	return fmt.Sprintf("%s/prompt/%s?width=%d&height=%d&seed=%d&model=%s&nologo=true",
		p.baseURL, url.PathEscape(req.Prompt), req.Width, req.Height, req.Seed, url.QueryEscape(p.model))
}

// Generate constructs the artifact URL and performs the bounded
// availability check. A 429 maps to RateLimited, an exceeded deadline to
// NotReady, any other non-2xx status to Failed.
func (p *Pollinations) Generate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	imageURL := p.ImageURL(req)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.verifyTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("pollinations: create request: %w", err)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{State: StateNotReady, Reason: "availability check timed out"}, nil
		}
		if errors.Is(err, context.Canceled) {
			return Result{}, context.Canceled
		}
		return Result{State: StateFailed, Reason: err.Error()}, nil
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{State: StateRateLimited, Reason: "engine busy"}, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{State: StateReady, Image: Image{
			URL:    imageURL,
			MIME:   firstNonEmpty(resp.Header.Get("Content-Type"), "image/jpeg"),
			Width:  req.Width,
			Height: req.Height,
		}}, nil
	default:
		return Result{State: StateFailed, Reason: fmt.Sprintf("status %d", resp.StatusCode)}, nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ Generator = (*Pollinations)(nil)
