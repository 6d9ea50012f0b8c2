// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package findings

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// phraseTargets maps domain phrases in both languages to link targets.
var phraseTargets = map[string]string{
	// English
	"company profile":         "company_profile",
	"maturity assessment":     "maturity",
	"business objectives":     "consultation_objectives",
	"situation assessment":    "consultation_situation",
	"AI goals":                "consultation_goals",
	"project plan":            "consultation_plan",
	"business case":           "business_case",
	"management pitch":        "business_case_pitch",
	"validation questions":    "business_case_validation",
	"cost estimation":         "cost_estimation",
	"initial investment":      "cost_estimation_investment",
	"recurring costs":         "cost_estimation_recurring",
	"total cost of ownership": "cost_estimation_tco",
	"cost drivers":            "cost_estimation_drivers",
	"ROI analysis":            "cost_estimation_roi",
	"SWOT analysis":           "swot",
	"transition briefing":     "transition_briefing",
	"6-3-5 method":            "six_three_five",
	"prioritization":          "prioritization",

	// German
	"Unternehmensprofil":   "company_profile",
	"Reifegradanalyse":     "maturity",
	"Geschäftsziele":       "consultation_objectives",
	"Situationsanalyse":    "consultation_situation",
	"KI-Ziele":             "consultation_goals",
	"Projektplan":          "consultation_plan",
	"Management-Pitch":     "business_case_pitch",
	"Validierungsfragen":   "business_case_validation",
	"Kostenschätzung":      "cost_estimation",
	"Initialinvestition":   "cost_estimation_investment",
	"laufende Kosten":      "cost_estimation_recurring",
	"Gesamtbetriebskosten": "cost_estimation_tco",
	"Kostentreiber":        "cost_estimation_drivers",
	"ROI-Analyse":          "cost_estimation_roi",
	"SWOT-Analyse":         "swot",
	"Übergabe-Briefing":    "transition_briefing",
	"6-3-5-Methode":        "six_three_five",
	"Priorisierung":        "prioritization",
}

// phraseRegex matches any phrase, longest first so that "SWOT analysis"
// wins over a shorter overlapping phrase at the same position.
var phraseRegex, phraseLookup = buildPhraseRegex()

func buildPhraseRegex() (*regexp.Regexp, map[string]string) {
	phrases := make([]string, 0, len(phraseTargets))
	lookup := make(map[string]string, len(phraseTargets))
	for p, target := range phraseTargets {
		phrases = append(phrases, p)
		lookup[strings.ToLower(p)] = target
	}
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, "|")), lookup
}

// protectedRegex matches spans auto-detection must not touch: existing
// wiki-links, inline code, and markdown link text.
var protectedRegex = regexp.MustCompile("\\[\\[[^\\]\\n]*\\]\\]|`[^`\\n]*`|\\[[^\\]\\n]*\\]\\([^)\\n]*\\)")

// AutoDetect wraps known domain phrases in [[target|phrase]] when they are
// not already inside a link. Matching is case-insensitive and only whole
// words are wrapped; the original spelling is kept as display text.
func AutoDetect(markdown string) string {
	var b strings.Builder
	last := 0
	for _, span := range protectedRegex.FindAllStringIndex(markdown, -1) {
		b.WriteString(wrapPhrases(markdown[last:span[0]]))
		b.WriteString(markdown[span[0]:span[1]])
		last = span[1]
	}
	b.WriteString(wrapPhrases(markdown[last:]))
	return b.String()
}

func wrapPhrases(text string) string {
	if text == "" {
		return text
	}
	var b strings.Builder
	pos := 0
	for pos < len(text) {
		loc := phraseRegex.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if !wordBoundary(text, start, end) {
			// Skip one rune and retry from there.
			_, size := utf8.DecodeRuneInString(text[start:])
			b.WriteString(text[pos : start+size])
			pos = start + size
			continue
		}
		phrase := text[start:end]
		target, ok := phraseLookup[strings.ToLower(phrase)]
		if !ok {
			b.WriteString(text[pos:end])
			pos = end
			continue
		}
		b.WriteString(text[pos:start])
		b.WriteString("[[")
		b.WriteString(target)
		b.WriteString("|")
		b.WriteString(phrase)
		b.WriteString("]]")
		pos = end
	}
	b.WriteString(text[pos:])
	return b.String()
}

// wordBoundary reports whether text[start:end] is not embedded in a word.
func wordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
