package reasoning

import (
	"context"
	"strings"
	"sync"
)

// Stub is a deterministic in-memory Collaborator for tests and offline use.
// Responses are matched by substring in registration order, first against
// the request's system prompt, then against the user prompt. Unmatched
// requests return Fallback or Err.
type Stub struct {
	mu    sync.Mutex
	rules []stubRule
	// Fallback is returned when no rule matches and Err is nil.
	Fallback string
	// Err, when set, is returned for every unmatched request.
	Err error
	// Calls records the requests received, in order.
	Calls []Request
}

type stubRule struct {
	match    string
	response string
	err      error
}

// Respond registers a response for requests whose system prompt contains
// match.
func (s *Stub) Respond(match, response string) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, stubRule{match: match, response: response})
	return s
}

// Fail registers an error for requests whose system prompt contains match.
func (s *Stub) Fail(match string, err error) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, stubRule{match: match, err: err})
	return s
}

// Complete implements Collaborator.
func (s *Stub) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, req)

	for _, r := range s.rules {
		if strings.Contains(req.System, r.match) {
			return r.response, r.err
		}
	}
	for _, r := range s.rules {
		if strings.Contains(req.Prompt, r.match) {
			return r.response, r.err
		}
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Fallback, nil
}
