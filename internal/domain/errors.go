package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotConfigured = errors.New("provider not configured")
	ErrNoCredits     = errors.New("credits exhausted")
	ErrRateLimited   = errors.New("provider rate limited")
	ErrTimeout       = errors.New("provider timed out")
	ErrEmptyResponse = errors.New("provider returned no image")
	ErrProviderFault = errors.New("provider failure")
	ErrStorageQuota  = errors.New("storage quota exceeded")
	ErrAlreadyHiRes  = errors.New("item is already upscaled")
)
