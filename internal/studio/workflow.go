// Package studio orchestrates the generation lifecycle: capacity checks,
// provider dispatch, history recording and credit accounting.
package studio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"studio/internal/credits"
	"studio/internal/domain"
	"studio/internal/history"
	"studio/internal/infra"
	"studio/internal/providers/image"
)

// upscaleSuffix is appended to the source prompt when re-rendering at high
// resolution.
const upscaleSuffix = ", masterpiece, 8k resolution, cinematic lighting"

// Config bounds the workflow's provider calls.
type Config struct {
	// VerifyTimeout bounds a single generation.
	VerifyTimeout time.Duration
	// UpscaleVerifyTimeout bounds upscales and variation batches, which
	// render larger or multiple artifacts.
	UpscaleVerifyTimeout time.Duration
	// VariationBatch is how many alternates one variations call renders.
	VariationBatch int
	// UpscaleSize is the square edge length for high-resolution renders.
	UpscaleSize int
}

func (c Config) withDefaults() Config {
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = 40 * time.Second
	}
	if c.UpscaleVerifyTimeout <= 0 {
		c.UpscaleVerifyTimeout = 60 * time.Second
	}
	if c.VariationBatch <= 0 {
		c.VariationBatch = 4
	}
	if c.UpscaleSize <= 0 {
		c.UpscaleSize = 2048
	}
	return c
}

// GenerateInput is one user-initiated render request.
type GenerateInput struct {
	Prompt string
	// Seed pins the noise seed; nil draws a fresh random one.
	Seed   *int64
	Width  int
	Height int
}

// Outcome is the result of a completed single render.
type Outcome struct {
	Item domain.HistoryItem
	// Credits is the balance after accounting.
	Credits int
	// Stale marks a completion that was superseded by a newer request
	// from the same user; it is recorded but must not replace the
	// current display.
	Stale bool
}

// VariationsOutcome reports a variation batch.
type VariationsOutcome struct {
	Items   []domain.HistoryItem
	Failed  int
	Credits int
	Stale   bool
}

// Workflow coordinates providers, history and credits for all render
// operations. Safe for concurrent use.
type Workflow struct {
	credits   *credits.Manager
	history   *history.Manager
	generator image.Generator
	cfg       Config
	logger    infra.Logger
	newSeed   func() int64
	now       func() time.Time

	mu     sync.Mutex
	latest map[string]uint64

	// commitMu serializes the history/credit read-modify-write cycle so
	// overlapping completions cannot lose updates.
	commitMu sync.Mutex
}

// Option customizes a Workflow.
type Option func(*Workflow)

// WithSeedSource replaces the random seed source, for tests.
func WithSeedSource(fn func() int64) Option {
	return func(w *Workflow) { w.newSeed = fn }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// NewWorkflow wires the workflow together.
func NewWorkflow(c *credits.Manager, h *history.Manager, g image.Generator, cfg Config, logger infra.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		credits:   c,
		history:   h,
		generator: g,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		newSeed:   func() int64 { return rand.Int63n(domain.SeedMax + 1) },
		now:       time.Now,
		latest:    map[string]uint64{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// begin registers a new request for the user and returns its sequence
// number. Only the most recent sequence may update the current display.
func (w *Workflow) begin(userID string) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.latest[userID]++
	return w.latest[userID]
}

func (w *Workflow) isLatest(userID string, seq uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest[userID] == seq
}

// Generate renders a single image. The full sequence is: reject when the
// provider is unconfigured or the user has no credits, dispatch with a
// bounded wait, then on success record history, charge one credit and move
// the current selection unless a newer request superseded this one.
func (w *Workflow) Generate(ctx context.Context, userID string, in GenerateInput) (Outcome, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return Outcome{}, fmt.Errorf("studio: empty prompt")
	}
	if err := w.preflight(ctx, userID); err != nil {
		return Outcome{}, err
	}
	seq := w.begin(userID)

	seed := w.newSeed()
	if in.Seed != nil {
		seed = *in.Seed
	}
	req := image.Request{Prompt: prompt, Seed: seed, Width: in.Width, Height: in.Height}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.VerifyTimeout)
	defer cancel()

	w.logger.Debug().Str("user_id", userID).Int64("seed", seed).Msg("studio: dispatching generation")
	started := w.now()
	res, err := w.generator.Generate(callCtx, req)
	elapsed := w.now().Sub(started)
	if mapped := w.mapOutcome(res, err); mapped != nil {
		w.logger.Warn().Err(mapped).Str("user_id", userID).Dur("elapsed", elapsed).Msg("studio: generation failed")
		return Outcome{}, mapped
	}

	item := w.newItem(prompt, req, res.Image, elapsed)
	return w.commit(ctx, userID, seq, item)
}

// Upscale re-renders an existing item at high resolution with the same
// seed. Already-upscaled items are rejected.
func (w *Workflow) Upscale(ctx context.Context, userID, itemID string) (Outcome, error) {
	source, err := w.history.Get(ctx, userID, itemID)
	if err != nil {
		return Outcome{}, err
	}
	if source.IsUpscaled {
		return Outcome{}, domain.ErrAlreadyHiRes
	}
	if err := w.preflight(ctx, userID); err != nil {
		return Outcome{}, err
	}
	seq := w.begin(userID)

	req := image.Request{
		Prompt: source.Prompt + upscaleSuffix,
		Seed:   source.Seed,
		Width:  w.cfg.UpscaleSize,
		Height: w.cfg.UpscaleSize,
	}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.UpscaleVerifyTimeout)
	defer cancel()

	started := w.now()
	res, err := w.generator.Generate(callCtx, req)
	elapsed := w.now().Sub(started)
	if mapped := w.mapOutcome(res, err); mapped != nil {
		return Outcome{}, mapped
	}

	item := w.newItem(req.Prompt, req, res.Image, elapsed)
	item.IsUpscaled = true
	item.IsFavorite = source.IsFavorite
	return w.commit(ctx, userID, seq, item)
}

// Variations renders a batch of alternates of an existing item with fresh
// seeds. The whole batch costs one credit, charged only when at least one
// alternate succeeds. Successes are recorded even when siblings fail.
func (w *Workflow) Variations(ctx context.Context, userID, itemID string) (VariationsOutcome, error) {
	source, err := w.history.Get(ctx, userID, itemID)
	if err != nil {
		return VariationsOutcome{}, err
	}
	if err := w.preflight(ctx, userID); err != nil {
		return VariationsOutcome{}, err
	}
	seq := w.begin(userID)

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.UpscaleVerifyTimeout)
	defer cancel()

	var (
		resMu    sync.Mutex
		rendered []domain.HistoryItem
		failures []error
	)
	g, gctx := errgroup.WithContext(callCtx)
	for i := 0; i < w.cfg.VariationBatch; i++ {
		g.Go(func() error {
			req := image.Request{
				Prompt: source.Prompt,
				Seed:   w.newSeed(),
				Width:  source.Width,
				Height: source.Height,
			}
			started := w.now()
			res, err := w.generator.Generate(gctx, req)
			elapsed := w.now().Sub(started)
			if mapped := w.mapOutcome(res, err); mapped != nil {
				resMu.Lock()
				failures = append(failures, mapped)
				resMu.Unlock()
				return nil
			}
			item := w.newItem(source.Prompt, req, res.Image, elapsed)
			resMu.Lock()
			rendered = append(rendered, item)
			resMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(rendered) == 0 {
		return VariationsOutcome{}, worstOf(failures)
	}

	w.commitMu.Lock()
	defer w.commitMu.Unlock()
	if err := w.history.Add(ctx, userID, rendered...); err != nil {
		return VariationsOutcome{}, err
	}
	balance, err := w.credits.Consume(ctx, userID, 1)
	if err != nil {
		return VariationsOutcome{}, err
	}

	out := VariationsOutcome{Items: rendered, Failed: len(failures), Credits: balance}
	if w.isLatest(userID, seq) {
		if err := w.history.SetCurrent(ctx, userID, rendered[0].ID); err != nil {
			return VariationsOutcome{}, err
		}
	} else {
		out.Stale = true
	}
	w.logger.Info().
		Str("user_id", userID).
		Int("succeeded", len(rendered)).
		Int("failed", len(failures)).
		Msg("studio: variation batch complete")
	return out, nil
}

// preflight rejects work that cannot possibly succeed before touching the
// network.
func (w *Workflow) preflight(ctx context.Context, userID string) error {
	if w.generator == nil || !w.generator.Configured() {
		return domain.ErrNotConfigured
	}
	ok, err := w.credits.HasCapacity(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoCredits
	}
	return nil
}

// commit records a successful render: history first, then the credit
// charge, then the display selection. A stale completion keeps its history
// and charge but leaves the current selection alone.
func (w *Workflow) commit(ctx context.Context, userID string, seq uint64, item domain.HistoryItem) (Outcome, error) {
	w.commitMu.Lock()
	defer w.commitMu.Unlock()
	if err := w.history.Add(ctx, userID, item); err != nil {
		return Outcome{}, err
	}
	balance, err := w.credits.Consume(ctx, userID, 1)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Item: item, Credits: balance}
	if w.isLatest(userID, seq) {
		if err := w.history.SetCurrent(ctx, userID, item.ID); err != nil {
			return Outcome{}, err
		}
	} else {
		out.Stale = true
	}
	w.logger.Info().
		Str("user_id", userID).
		Str("item_id", item.ID).
		Int("credits", balance).
		Bool("stale", out.Stale).
		Msg("studio: render recorded")
	return out, nil
}

func (w *Workflow) newItem(prompt string, req image.Request, img image.Image, elapsed time.Duration) domain.HistoryItem {
	return domain.HistoryItem{
		ID:             uuid.NewString(),
		Prompt:         prompt,
		ImageURL:       artifactURL(img),
		Seed:           req.Seed,
		Width:          req.Width,
		Height:         req.Height,
		Timestamp:      w.now().UnixMilli(),
		GenerationTime: elapsed.Seconds(),
	}
}

// mapOutcome translates provider results and transport errors into the
// domain error taxonomy.
func (w *Workflow) mapOutcome(res image.Result, err error) error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ErrTimeout
		}
		return fmt.Errorf("%w: %v", domain.ErrProviderFault, err)
	}
	switch res.State {
	case image.StateReady:
		return nil
	case image.StateRateLimited:
		return domain.ErrRateLimited
	case image.StateNotReady:
		return domain.ErrTimeout
	case image.StateEmpty:
		return domain.ErrEmptyResponse
	default:
		if res.Reason != "" {
			return fmt.Errorf("%w: %s", domain.ErrProviderFault, res.Reason)
		}
		return domain.ErrProviderFault
	}
}

// artifactURL returns a dereferenceable URL for the artifact, inlining
// provider bytes as a data URI when no remote URL exists.
func artifactURL(img image.Image) string {
	if img.URL != "" {
		return img.URL
	}
	if len(img.Data) == 0 {
		return ""
	}
	mime := img.MIME
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// worstOf picks the most actionable failure to surface for an all-failed
// batch: an explicit throttle beats a timeout, which beats a generic fault.
func worstOf(failures []error) error {
	var timeout, fault error
	for _, err := range failures {
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			return domain.ErrRateLimited
		case errors.Is(err, domain.ErrTimeout):
			timeout = err
		default:
			fault = err
		}
	}
	if timeout != nil {
		return timeout
	}
	if fault != nil {
		return fault
	}
	return domain.ErrProviderFault
}
