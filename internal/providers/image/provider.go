// Package image abstracts the external image synthesis backends behind one
// normalized request/result contract. Two families exist: URL-construction
// providers whose artifacts must be verified for availability, and
// generative providers that return image bytes inline.
package image

import "context"

// Request describes a single image to synthesize.
type Request struct {
	Prompt string
	Seed   int64
	Width  int
	Height int
}

// Image is the normalized artifact reference: either a dereferenceable URL
// or inline bytes, depending on the provider family.
type Image struct {
	URL    string
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// State classifies a provider outcome so the workflow never depends on any
// provider's wire format.
type State int

const (
	// StateReady means the artifact is usable.
	StateReady State = iota
	// StateRateLimited means the provider explicitly throttled the call.
	StateRateLimited
	// StateNotReady means the artifact was not available within the
	// bounded wait; retrying later may succeed.
	StateNotReady
	// StateEmpty means the call succeeded transport-wise but yielded no
	// usable image.
	StateEmpty
	// StateFailed means a hard provider failure.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRateLimited:
		return "rate_limited"
	case StateNotReady:
		return "not_ready"
	case StateEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// Result is the tagged outcome of one generation call.
type Result struct {
	State  State
	Image  Image
	Reason string
}

// Generator is the contract implemented by all image providers. Generate
// returns an error only for infrastructure faults (context cancellation,
// request construction); provider-level outcomes are encoded in the Result.
type Generator interface {
	Name() string
	Configured() bool
	Generate(ctx context.Context, req Request) (Result, error)
}
