// Package reasoning binds the orchestration core to its external reasoning
// collaborator. The collaborator accepts a natural-language instruction plus
// a structured context payload and returns either parseable output or an
// error; callers treat any non-conforming response identically to a hard
// error and fall back per their own contract.
package reasoning

import (
	"context"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a response contains no parseable JSON document.
var ErrNoJSON = errors.New("no JSON document found in response")

// Request is a single instruction for the collaborator.
type Request struct {
	// System sets the collaborator's role for this call.
	System string
	// Prompt is the instruction plus serialized context payload.
	Prompt string
}

// Collaborator is the external reasoning service consumed by the classifier,
// the planner and all stages. One call is a single atomic request/response;
// the caller imposes its timeout through ctx. No retries: each component's
// fallback is its retry policy.
type Collaborator interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrOffline is returned by the offline collaborator for every request.
var ErrOffline = errors.New("reasoning collaborator unavailable")

type offline struct{}

func (offline) Complete(ctx context.Context, req Request) (string, error) {
	return "", ErrOffline
}

// Offline returns a Collaborator that always fails. Running the pipeline
// against it exercises every fallback path: computed metrics still come
// out, narrative content degrades to the fixed sets.
func Offline() Collaborator {
	return offline{}
}

// ExtractJSON returns the widest {...} or [...] window in the response.
// Collaborator output often wraps JSON in prose; parse the window, not the
// whole response.
func ExtractJSON(response string) (string, error) {
	objStart := strings.Index(response, "{")
	arrStart := strings.Index(response, "[")

	start, end := objStart, strings.LastIndex(response, "}")
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		start, end = arrStart, strings.LastIndex(response, "]")
	}
	if start == -1 || end <= start {
		return "", ErrNoJSON
	}
	return response[start : end+1], nil
}
