package llm

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable indicates a transport or auth failure calling the model
// provider. The gateway does not retry; callers decide how to surface it.
var ErrModelUnavailable = errors.New("model unavailable")

// malformedSnippetLimit bounds the diagnostic excerpt carried by
// MalformedOutputError.
const malformedSnippetLimit = 500

// MalformedOutputError indicates that no JSON object could be extracted from
// a model response. Snippet holds the leading portion of the raw response for
// diagnostics.
type MalformedOutputError struct {
	Snippet string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("no JSON object found in model output: %q", e.Snippet)
}

// IsMalformedOutput returns true if the error is a MalformedOutputError.
func IsMalformedOutput(err error) bool {
	var malformed *MalformedOutputError
	return errors.As(err, &malformed)
}

func snippet(text string) string {
	if len(text) > malformedSnippetLimit {
		return text[:malformedSnippetLimit]
	}
	return text
}
