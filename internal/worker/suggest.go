package worker

import (
	"encoding/json"
	"regexp"
	"strings"
)

// The model smuggles a follow-up suggestion inside its reply as an
// HTML-comment marker with a JSON payload. Only the first marker counts;
// anything the model hallucinates after that is treated as plain text.
var suggestionMarker = regexp.MustCompile(`(?s)<!--\s*SUGGESTION:\s*(.*?)\s*-->`)

type SuggestionOutcome int

const (
	SuggestionAbsent SuggestionOutcome = iota
	SuggestionFound
	SuggestionMalformed
)

type ExtractedSuggestion struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

// ExtractSuggestion scans text for an embedded suggestion marker.
// The marker is stripped from the returned text whether or not its payload
// parses; the visible reply must never contain the raw marker.
func ExtractSuggestion(text string) (string, *ExtractedSuggestion, SuggestionOutcome) {
	m := suggestionMarker.FindStringSubmatchIndex(text)
	if m == nil {
		return text, nil, SuggestionAbsent
	}
	stripped := strings.TrimSpace(text[:m[0]] + text[m[1]:])
	payload := text[m[2]:m[3]]

	var s ExtractedSuggestion
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return stripped, nil, SuggestionMalformed
	}
	if strings.TrimSpace(s.Content) == "" {
		return stripped, nil, SuggestionMalformed
	}
	if s.Category == "" {
		s.Category = "other"
	}
	return stripped, &s, SuggestionFound
}
