package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	stdimage "image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GeminiOptions controls how the generative provider is configured.
type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Gemini calls the generateContent endpoint and returns image bytes inline.
// Unlike the URL provider there is no separate availability check: the
// response body itself is the artifact.
type Gemini struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
	CandidateCount     int      `json:"candidateCount,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewGemini constructs the provider. A nil HTTP client gets a reusable one
// with a sensible timeout.
func NewGemini(opts GeminiOptions) *Gemini {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		model:   model,
		client:  client,
	}
}

func (g *Gemini) Name() string { return "gemini" }

// Configured reports whether an API key is present. Callers must check this
// before dispatching work; Generate refuses unconfigured calls.
func (g *Gemini) Configured() bool { return g.apiKey != "" }

// Generate invokes generateContent and returns the first inline image part.
func (g *Gemini) Generate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !g.Configured() {
		return Result{}, fmt.Errorf("gemini: no API key configured")
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildImagePrompt(req)}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			CandidateCount:     1,
		},
	}

	var response geminiGenerateContentResponse
	status, err := g.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(g.model)), payload, &response)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{State: StateNotReady, Reason: "generation timed out"}, nil
		}
		if errors.Is(err, context.Canceled) {
			return Result{}, context.Canceled
		}
		if status == http.StatusTooManyRequests {
			return Result{State: StateRateLimited, Reason: "quota exhausted"}, nil
		}
		return Result{State: StateFailed, Reason: err.Error()}, nil
	}

	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil || len(data) == 0 {
				continue
			}
			mime := firstNonEmpty(part.InlineData.MimeType, "image/png")
			w, h := decodeImageDimensions(data)
			if w == 0 || h == 0 {
				w, h = req.Width, req.Height
			}
			return Result{State: StateReady, Image: Image{
				Data:   data,
				MIME:   mime,
				Width:  w,
				Height: h,
			}}, nil
		}
	}

	return Result{State: StateEmpty, Reason: "no image candidates returned"}, nil
}

func (g *Gemini) invoke(ctx context.Context, path string, payload any, out any) (int, error) {
	endpoint := g.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("key", g.apiKey)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return resp.StatusCode, fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(data) > 0 {
			return resp.StatusCode, fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return resp.StatusCode, fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode gemini response: %w", err)
	}
	return resp.StatusCode, nil
}

func buildImagePrompt(req Request) string {
	var b strings.Builder
	prompt := strings.TrimSpace(req.Prompt)
	if prompt != "" {
		b.WriteString(prompt)
	}
	if req.Width > 0 && req.Height > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Target size: %dx%d", req.Width, req.Height)
	}
	if req.Seed > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Style seed: %d", req.Seed)
	}
	if b.Len() == 0 {
		b.WriteString("Create an image")
	}
	return b.String()
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := stdimage.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

var _ Generator = (*Gemini)(nil)
