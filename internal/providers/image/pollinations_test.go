package image

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestPollinationsImageURL(t *testing.T) {
	p := NewPollinations(PollinationsOptions{})
	got := p.ImageURL(Request{Prompt: "a red fox, watercolor", Seed: 12345, Width: 1024, Height: 768})

	if !strings.HasPrefix(got, "https://image.pollinations.ai/prompt/") {
		t.Fatalf("unexpected base: %s", got)
	}
	for _, want := range []string{"width=1024", "height=768", "seed=12345", "model=flux", "nologo=true"} {
		if !strings.Contains(got, want) {
			t.Fatalf("URL %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "a red fox, watercolor") {
		t.Fatal("prompt was not escaped")
	}
}

func TestPollinationsGenerateStates(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   State
	}{
		{"ready on 200", http.StatusOK, StateReady},
		{"rate limited on 429", http.StatusTooManyRequests, StateRateLimited},
		{"failed on 500", http.StatusInternalServerError, StateFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/jpeg")
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			p := NewPollinations(PollinationsOptions{BaseURL: srv.URL, HTTPClient: srv.Client()})
			res, err := p.Generate(context.Background(), Request{Prompt: "fox", Seed: 1, Width: 512, Height: 512})
			if err != nil {
				t.Fatalf("Generate returned error: %v", err)
			}
			if res.State != tc.want {
				t.Fatalf("State = %s, want %s", res.State, tc.want)
			}
			if tc.want == StateReady && res.Image.URL == "" {
				t.Fatal("ready result carries no URL")
			}
		})
	}
}

func TestPollinationsGenerateNotReadyOnDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p := NewPollinations(PollinationsOptions{BaseURL: srv.URL, HTTPClient: srv.Client(), VerifyTimeout: 50 * time.Millisecond})
	res, err := p.Generate(context.Background(), Request{Prompt: "fox", Seed: 1, Width: 512, Height: 512})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.State != StateNotReady {
		t.Fatalf("State = %s, want %s", res.State, StateNotReady)
	}
}

func TestPollinationsHonorsCallerDeadline(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	// A long provider default must not override the caller's short deadline.
	p := NewPollinations(PollinationsOptions{BaseURL: srv.URL, HTTPClient: srv.Client(), VerifyTimeout: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := p.Generate(ctx, Request{Prompt: "fox", Seed: 1, Width: 512, Height: 512})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.State != StateNotReady {
		t.Fatalf("State = %s, want %s", res.State, StateNotReady)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Generate took %v, caller deadline ignored", elapsed)
	}
}
