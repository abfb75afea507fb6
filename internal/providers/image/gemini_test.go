package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	stdimage "image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"
)

func tinyPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func geminiClientWith(fn roundTripFunc) *Gemini {
	return NewGemini(GeminiOptions{
		APIKey:     "test-key",
		HTTPClient: &http.Client{Transport: fn},
	})
}

func TestGeminiGenerateDecodesInlineImage(t *testing.T) {
	pngBytes := tinyPNG(t, 3, 2)

	g := geminiClientWith(func(req *http.Request) (*http.Response, error) {
		if !strings.Contains(req.URL.Path, ":generateContent") {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.URL.Query().Get("key"); got != "test-key" {
			t.Fatalf("key query = %q", got)
		}
		body := geminiGenerateContentResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{{
					InlineData: &geminiInlineData{
						MimeType: "image/png",
						Data:     base64.StdEncoding.EncodeToString(pngBytes),
					},
				}}},
			}},
		}
		payload, _ := json.Marshal(body)
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(bytes.NewReader(payload)),
		}, nil
	})

	res, err := g.Generate(context.Background(), Request{Prompt: "fox", Seed: 9, Width: 512, Height: 512})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.State != StateReady {
		t.Fatalf("State = %s, want %s (reason %q)", res.State, StateReady, res.Reason)
	}
	if !bytes.Equal(res.Image.Data, pngBytes) {
		t.Fatal("inline bytes were not preserved")
	}
	if res.Image.MIME != "image/png" {
		t.Fatalf("MIME = %q", res.Image.MIME)
	}
	if res.Image.Width != 3 || res.Image.Height != 2 {
		t.Fatalf("dimensions = %dx%d, want 3x2 from decoded bytes", res.Image.Width, res.Image.Height)
	}
}

func TestGeminiGenerateEmptyWhenNoCandidates(t *testing.T) {
	g := geminiClientWith(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"candidates":[]}`)),
		}, nil
	})

	res, err := g.Generate(context.Background(), Request{Prompt: "fox"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.State != StateEmpty {
		t.Fatalf("State = %s, want %s", res.State, StateEmpty)
	}
}

func TestGeminiGenerateRateLimited(t *testing.T) {
	g := geminiClientWith(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusTooManyRequests,
			Body:       io.NopCloser(strings.NewReader(`{"error":{"code":429,"message":"quota"}}`)),
		}, nil
	})

	res, err := g.Generate(context.Background(), Request{Prompt: "fox"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.State != StateRateLimited {
		t.Fatalf("State = %s, want %s", res.State, StateRateLimited)
	}
}

func TestGeminiGenerateFailedOnAPIError(t *testing.T) {
	g := geminiClientWith(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadRequest,
			Body:       io.NopCloser(strings.NewReader(`{"error":{"code":400,"message":"invalid prompt"}}`)),
		}, nil
	})

	res, err := g.Generate(context.Background(), Request{Prompt: "fox"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.State != StateFailed {
		t.Fatalf("State = %s, want %s", res.State, StateFailed)
	}
	if !strings.Contains(res.Reason, "invalid prompt") {
		t.Fatalf("Reason = %q, want API message included", res.Reason)
	}
}

func TestGeminiRefusesWithoutKey(t *testing.T) {
	g := NewGemini(GeminiOptions{HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("transport must not be reached")
	})}})
	if g.Configured() {
		t.Fatal("Configured() = true without key")
	}
	if _, err := g.Generate(context.Background(), Request{Prompt: "fox"}); err == nil {
		t.Fatal("Generate without key succeeded, want error")
	}
}
