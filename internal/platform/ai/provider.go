// Package ai talks to the generative model used for mapping suggestions.
package ai

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means no API key was supplied.
	ErrNotConfigured = errors.New("ai provider not configured")
	// ErrProviderUnavailable covers transport failures, non-2xx answers and an
	// open circuit.
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	// ErrEmptyResponse means the provider answered without any candidate text.
	ErrEmptyResponse = errors.New("ai provider returned no content")
)

// Provider turns a prompt into raw model text.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Disabled is the provider used when no API key is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
