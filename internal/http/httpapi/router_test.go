package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"studio/internal/credits"
	"studio/internal/domain"
	"studio/internal/history"
	"studio/internal/http/handlers"
	"studio/internal/prompts"
	"studio/internal/providers/image"
	"studio/internal/providers/prompt"
	"studio/internal/store"
	"studio/internal/studio"
)

type scriptedGenerator struct {
	result image.Result
}

func (s *scriptedGenerator) Name() string     { return "scripted" }
func (s *scriptedGenerator) Configured() bool { return true }

func (s *scriptedGenerator) Generate(ctx context.Context, req image.Request) (image.Result, error) {
	return s.result, nil
}

func newTestServer(t *testing.T, gen image.Generator) *httptest.Server {
	t.Helper()
	s := store.NewMemory(0)
	logger := zerolog.New(io.Discard)
	creditMgr := credits.NewManager(s, 10)
	historyMgr := history.NewManager(s, 50)
	app := &handlers.App{
		Logger:    logger,
		JWTSecret: "test-secret",
		Credits:   creditMgr,
		History:   historyMgr,
		Prompts:   prompts.NewManager(s),
		Enhancer:  prompt.NewService(nil),
		Studio:    studio.NewWorkflow(creditMgr, historyMgr, gen, studio.Config{}, logger),
		Provider:  gen,
	}
	srv := httptest.NewServer(NewRouter(app, RouterOptions{DefaultLocale: "en"}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func login(t *testing.T, srv *httptest.Server, identifier string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", "", map[string]string{"identifier": identifier})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d: %s", resp.StatusCode, body)
	}
	var decoded struct {
		Token string `json:"token"`
		User  struct {
			Credits int `json:"credits"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if decoded.User.Credits != 10 {
		t.Fatalf("fresh login credits = %d, want 10", decoded.User.Credits)
	}
	return decoded.Token
}

func TestGenerateFlow(t *testing.T) {
	gen := &scriptedGenerator{result: image.Result{
		State: image.StateReady,
		Image: image.Image{URL: "https://img.example/fox.jpg", MIME: "image/jpeg"},
	}}
	srv := newTestServer(t, gen)
	token := login(t, srv, "alice")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/images/generate", token, map[string]any{
		"prompt": "a fox in the snow",
		"width":  1024,
		"height": 1024,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate status = %d: %s", resp.StatusCode, body)
	}
	var rendered struct {
		Item    domain.HistoryItem `json:"item"`
		Credits int                `json:"credits"`
	}
	if err := json.Unmarshal(body, &rendered); err != nil {
		t.Fatalf("decode generate response: %v", err)
	}
	if rendered.Credits != 9 {
		t.Fatalf("credits = %d, want 9", rendered.Credits)
	}
	if rendered.Item.ImageURL != "https://img.example/fox.jpg" {
		t.Fatalf("image url = %q", rendered.Item.ImageURL)
	}

	// The render is the new current selection and appears in history.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/history/current", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("current status = %d: %s", resp.StatusCode, body)
	}
	var current domain.HistoryItem
	if err := json.Unmarshal(body, &current); err != nil {
		t.Fatalf("decode current: %v", err)
	}
	if current.ID != rendered.Item.ID {
		t.Fatalf("current = %s, want %s", current.ID, rendered.Item.ID)
	}

	// Favorite it and verify the grouped listing pins it.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/history/"+rendered.Item.ID+"/favorite", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("favorite status = %d: %s", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/history/", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d: %s", resp.StatusCode, body)
	}
	var grouped history.Grouped
	if err := json.Unmarshal(body, &grouped); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(grouped.Favorites) != 1 || grouped.Favorites[0].ID != rendered.Item.ID {
		t.Fatalf("favorites = %+v", grouped.Favorites)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/credits", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("credits status = %d: %s", resp.StatusCode, body)
	}
	var balance struct {
		Credits int `json:"credits"`
		Max     int `json:"max"`
	}
	if err := json.Unmarshal(body, &balance); err != nil {
		t.Fatalf("decode credits: %v", err)
	}
	if balance.Credits != 9 || balance.Max != 10 {
		t.Fatalf("balance = %+v", balance)
	}

	// Simulated top-up restores the daily maximum.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/credits/refill", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refill status = %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &balance); err != nil {
		t.Fatalf("decode refill: %v", err)
	}
	if balance.Credits != 10 {
		t.Fatalf("credits after refill = %d, want 10", balance.Credits)
	}
}

func TestGenerateMapsProviderThrottle(t *testing.T) {
	gen := &scriptedGenerator{result: image.Result{State: image.StateRateLimited}}
	srv := newTestServer(t, gen)
	token := login(t, srv, "alice")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/images/generate", token, map[string]any{
		"prompt": "a fox",
		"width":  512,
		"height": 512,
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429: %s", resp.StatusCode, body)
	}

	// The failed render must not consume a credit.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/credits", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("credits status = %d", resp.StatusCode)
	}
	var balance struct {
		Credits int `json:"credits"`
	}
	if err := json.Unmarshal(body, &balance); err != nil {
		t.Fatalf("decode credits: %v", err)
	}
	if balance.Credits != 10 {
		t.Fatalf("credits = %d, want untouched 10", balance.Credits)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{result: image.Result{State: image.StateReady}})
	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/images/generate"},
		{http.MethodGet, "/v1/history/"},
		{http.MethodGet, "/v1/credits"},
		{http.MethodPost, "/v1/prompts/enhance"},
	} {
		resp, _ := doJSON(t, route.method, srv.URL+route.path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s %s status = %d, want 401", route.method, route.path, resp.StatusCode)
		}
	}
}

func TestLoginValidatesIdentifier(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{})
	for _, identifier := range []string{"", " ", "a", "UPPER CASE WITH SPACES", "bad/slash"} {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", "", map[string]string{"identifier": identifier})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("identifier %q status = %d, want 400", identifier, resp.StatusCode)
		}
	}
}

func TestEnhanceFallsBackToStatic(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{})
	token := login(t, srv, "alice")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/prompts/enhance", token, map[string]string{"prompt": "a castle"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enhance status = %d: %s", resp.StatusCode, body)
	}
	var decoded struct {
		Enhanced string `json:"enhanced"`
		Source   string `json:"source"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode enhance: %v", err)
	}
	if decoded.Source != "static" {
		t.Fatalf("source = %q, want static", decoded.Source)
	}
	if decoded.Enhanced != "a castle"+prompt.FallbackSuffix {
		t.Fatalf("enhanced = %q", decoded.Enhanced)
	}
}
