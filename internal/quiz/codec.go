package quiz

import (
	"regexp"
	"strings"
	"unicode"
)

// Two choice encodings coexist in the data. Newer rows are comma-separated
// ("A:x,B:y,..."); older rows concatenate label-prefixed segments with no
// delimiter at all ("A.x B.y" or "A:xB:y"). The label marker is a letter
// A-E followed by an ASCII period, a fullwidth period, or a colon.
var choiceLabel = regexp.MustCompile(`[A-E][.．:]`)

// SplitChoices decodes a stored choices field into its ordered segments.
// Comma splitting wins when a comma is present; otherwise the string is cut
// immediately before each label marker. Never fails: when neither split
// yields more than one segment, the trimmed original comes back as a
// single-element slice.
func SplitChoices(raw string) []string {
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		return parts
	}

	var segments []string
	starts := choiceLabel.FindAllStringIndex(raw, -1)
	prev := 0
	for _, loc := range starts {
		if seg := strings.TrimSpace(raw[prev:loc[0]]); seg != "" {
			segments = append(segments, seg)
		}
		prev = loc[0]
	}
	if seg := strings.TrimSpace(raw[prev:]); seg != "" {
		segments = append(segments, seg)
	}

	if len(segments) <= 1 {
		return []string{strings.TrimSpace(raw)}
	}
	return segments
}

// IsCorrect grades a submitted choice against the stored correct field.
// Only the first character of the correct field counts; the submitted
// choice matches when it starts with that letter, case-insensitively.
// Choice text may or may not embed its own label, so full-string equality
// is never required. An empty correct field never matches.
func IsCorrect(userChoice, correctField string) bool {
	correct := strings.TrimSpace(correctField)
	if correct == "" {
		return false
	}
	label := unicode.ToUpper([]rune(correct)[0])

	choice := []rune(strings.TrimSpace(userChoice))
	if len(choice) == 0 {
		return false
	}
	return unicode.ToUpper(choice[0]) == label
}
