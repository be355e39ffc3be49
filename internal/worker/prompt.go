package worker

import (
	"sort"
	"strings"

	"github.com/tekvare/erp-ai-worker/internal/services"
)

// BuildSystemPrompt assembles the system message: persona fragment, current
// date, then the business fields as a readable block. The fragment itself,
// the suggestion prompts and the locale never appear in the data block.
func BuildSystemPrompt(bc *services.BusinessContext) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(bc.SystemPrompt))
	b.WriteString("\n\nCurrent date: ")
	b.WriteString(bc.Today)

	if len(bc.Fields) > 0 {
		keys := make([]string, 0, len(bc.Fields))
		for k := range bc.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("\n\nBusiness data:")
		for _, k := range keys {
			b.WriteString("\n- ")
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(bc.Fields[k])
		}
	}
	return b.String()
}
