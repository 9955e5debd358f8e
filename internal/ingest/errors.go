package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used by callers to decide whether a failure is worth
// retrying on a later run or is a definitive remote verdict.
var (
	// ErrNotFound marks a knowledge id the remote system no longer knows.
	ErrNotFound = errors.New("knowledge not found")
	// ErrTransient marks timeouts, connection problems and 5xx responses.
	// Records hitting these are left alone for the next run.
	ErrTransient = errors.New("transient ingest failure")
	// ErrRemote marks a definitive rejection by the ingestion service.
	ErrRemote = errors.New("ingest request rejected")
)

func classifyTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}

func remoteMessage(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return "no error detail provided"
	}
	return message
}

func summarizeBody(body []byte) string {
	const maxSnippet = 200
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet] + "..."
	}
	if snippet == "" {
		return "empty body"
	}
	return snippet
}
