package provider

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for capability calls.
var (
	// ErrSummarizeTimeout indicates the summarization capability did not
	// answer within the configured deadline.
	ErrSummarizeTimeout = errors.New("summarization timed out")

	// ErrSummarizeFailed indicates the summarization capability returned
	// an error or an unusable response.
	ErrSummarizeFailed = errors.New("summarization failed")

	// ErrEmbedFailed indicates the embedding capability returned an error
	// or a vector of the wrong dimension.
	ErrEmbedFailed = errors.New("embedding failed")
)

// MapSummarizeErr normalizes a raw capability error: deadline expiry maps to
// ErrSummarizeTimeout, everything else wraps ErrSummarizeFailed. Sentinel
// errors pass through untouched.
func MapSummarizeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSummarizeTimeout) || errors.Is(err, ErrSummarizeFailed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrSummarizeTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrSummarizeFailed, err)
}

// MapEmbedErr wraps a raw embedding error in ErrEmbedFailed unless it
// already carries the sentinel.
func MapEmbedErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEmbedFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrEmbedFailed, err)
}
