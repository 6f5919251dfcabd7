package llmprovider

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// SandboxProvider returns deterministic, canned responses keyed by a hash
// of the request. It never calls out to a network, and is used for local
// development and tests where the suite expects reproducible LLM output.
type SandboxProvider struct {
	Canned    map[string]string
	Dimension int
}

// NewSandboxProvider builds a sandbox with an optional canned-response
// table (request hash -> response text). Unmatched requests echo a
// deterministic placeholder derived from the request itself.
func NewSandboxProvider(canned map[string]string) *SandboxProvider {
	if canned == nil {
		canned = make(map[string]string)
	}
	return &SandboxProvider{Canned: canned}
}

func (s *SandboxProvider) Name() string { return "sandbox" }

func (s *SandboxProvider) Generate(_ context.Context, req Request) (Response, error) {
	key := requestHash(req)
	if text, ok := s.Canned[key]; ok {
		return Response{Text: text, Model: "sandbox", TokensInput: len(req.System) + len(lastUserContent(req)), TokensOutput: len(text)}, nil
	}

	var last string
	if len(req.Messages) > 0 {
		last = req.Messages[len(req.Messages)-1].Content
	}
	placeholder := fmt.Sprintf("[sandbox response %x] %s", sha256.Sum256([]byte(last)), truncateSandbox(last, 80))
	return Response{
		Text:         placeholder,
		Model:        "sandbox",
		TokensInput:  len(req.System) + len(last),
		TokensOutput: len(placeholder),
	}, nil
}

func lastUserContent(req Request) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}

func truncateSandbox(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
