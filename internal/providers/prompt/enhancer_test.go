package prompt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type failingEnhancer struct{}

func (failingEnhancer) Name() string { return "failing" }

func (failingEnhancer) Enhance(context.Context, string) (string, error) {
	return "", errors.New("upstream down")
}

func TestStaticEnhancerAppendsSuffixOnce(t *testing.T) {
	enhanced, err := StaticEnhancer{}.Enhance(context.Background(), "a castle")
	if err != nil {
		t.Fatalf("Enhance returned error: %v", err)
	}
	if enhanced != "a castle"+FallbackSuffix {
		t.Fatalf("enhanced = %q", enhanced)
	}

	again, err := StaticEnhancer{}.Enhance(context.Background(), enhanced)
	if err != nil {
		t.Fatalf("Enhance returned error: %v", err)
	}
	if again != enhanced {
		t.Fatalf("suffix applied twice: %q", again)
	}
}

func TestServiceFallsBackOnPrimaryFailure(t *testing.T) {
	svc := NewService(failingEnhancer{})
	enhanced, source := svc.Enhance(context.Background(), "a castle")
	if source != "static" {
		t.Fatalf("source = %q, want static", source)
	}
	if !strings.HasSuffix(enhanced, FallbackSuffix) {
		t.Fatalf("enhanced = %q, want fallback suffix", enhanced)
	}
}

func TestServiceWithoutPrimaryUsesFallback(t *testing.T) {
	svc := NewService(nil)
	enhanced, source := svc.Enhance(context.Background(), "a castle")
	if source != "static" {
		t.Fatalf("source = %q, want static", source)
	}
	if enhanced != "a castle"+FallbackSuffix {
		t.Fatalf("enhanced = %q", enhanced)
	}
}

func TestGeminiEnhancerReturnsModelText(t *testing.T) {
	g, err := NewGeminiEnhancer(GeminiOptions{
		APIKey: "test-key",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if got := req.URL.Query().Get("key"); got != "test-key" {
				t.Fatalf("key query = %q", got)
			}
			body := `{"candidates":[{"content":{"role":"model","parts":[{"text":"  a grand stone castle at golden hour, mist, 85mm  "}]}}]}`
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(body)),
			}, nil
		})},
	})
	if err != nil {
		t.Fatalf("NewGeminiEnhancer returned error: %v", err)
	}

	enhanced, err := g.Enhance(context.Background(), "a castle")
	if err != nil {
		t.Fatalf("Enhance returned error: %v", err)
	}
	if enhanced != "a grand stone castle at golden hour, mist, 85mm" {
		t.Fatalf("enhanced = %q", enhanced)
	}
}

func TestGeminiEnhancerErrorsBubbleToFallback(t *testing.T) {
	g, err := NewGeminiEnhancer(GeminiOptions{
		APIKey: "test-key",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusServiceUnavailable,
				Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"overloaded"}}`)),
			}, nil
		})},
	})
	if err != nil {
		t.Fatalf("NewGeminiEnhancer returned error: %v", err)
	}

	svc := NewService(g)
	enhanced, source := svc.Enhance(context.Background(), "a castle")
	if source != "static" {
		t.Fatalf("source = %q, want static after remote failure", source)
	}
	if enhanced != "a castle"+FallbackSuffix {
		t.Fatalf("enhanced = %q", enhanced)
	}
}

func TestNewGeminiEnhancerRequiresKey(t *testing.T) {
	if _, err := NewGeminiEnhancer(GeminiOptions{}); err == nil {
		t.Fatal("NewGeminiEnhancer without key succeeded, want error")
	}
}
