package chart

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TitleCase converts snake_case, kebab-case and camelCase identifiers to
// space separated Title Case ("restingHeartRate" -> "Resting Heart Rate").
func TitleCase(s string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	// NoLower keeps acronyms such as "HRV" intact.
	caser := cases.Title(language.Und, cases.NoLower)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// Title composes a chart title from the tool name and the plotted columns.
// Namespaced tool names ("garmin.get_steps", "garmin__get_steps") keep only
// the tool part.
func Title(toolName string, yKeys []string) string {
	name := toolName
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}
	if idx := strings.LastIndex(name, "__"); idx != -1 {
		name = name[idx+2:]
	}

	metrics := make([]string, len(yKeys))
	for i, k := range yKeys {
		metrics[i] = TitleCase(k)
	}

	tool := TitleCase(name)
	switch {
	case tool == "":
		return strings.Join(metrics, " & ")
	case len(metrics) == 0:
		return tool
	}
	return tool + ": " + strings.Join(metrics, " & ")
}
