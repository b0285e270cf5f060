package plan

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/planfab/planfab/internal/domain"
)

var (
	titlePattern = regexp.MustCompile(`(?s)<title>(.*?)</title>`)
	planPattern  = regexp.MustCompile(`(?s)<plan>(.*?)</plan>`)
)

// Generate produces a complete plan document from a single prompt without a
// conversation. The model responds with tagged sections; a missing title
// falls back to "Untitled Plan" and a missing plan tag falls back to the
// whole response body.
func (e *Engine) Generate(ctx context.Context, prompt string) (*domain.PlanDocument, error) {
	raw, err := e.gateway.Complete(ctx, oneShotSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	title := "Untitled Plan"
	if m := titlePattern.FindStringSubmatch(raw); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			title = t
		}
	}

	content := strings.TrimSpace(raw)
	if m := planPattern.FindStringSubmatch(raw); m != nil {
		content = strings.TrimSpace(m[1])
	}

	return &domain.PlanDocument{Title: title, Content: content}, nil
}
