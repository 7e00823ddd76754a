package provider

import (
	"strings"

	"github.com/hpkotak/amphy/internal/prompt"
)

// resolveModel returns requestModel when non-empty, otherwise defaultModel.
func resolveModel(requestModel, defaultModel string) string {
	if m := strings.TrimSpace(requestModel); m != "" {
		return m
	}
	return defaultModel
}

// summarizerSystemPrompt phrases SummarizerOptions as instructions for
// engines that have no native summarizer.
func summarizerSystemPrompt(opts SummarizerOptions) string {
	return prompt.SummarizerSystemPrompt(opts.Type, opts.Format, opts.Length)
}
