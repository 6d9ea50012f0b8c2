// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package consult

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/consult-tui/internal/model"
)

// MinTopicMatches is the number of distinct keywords that cover a topic.
const MinTopicMatches = 2

// topicKeywords is the keyword table per language. Multi-word entries match
// as phrases; all entries match whole words only.
var topicKeywords = map[string]map[string][]string{
	"en": {
		"business_objectives":  {"goal", "goals", "objective", "objectives", "revenue", "growth", "strategy", "customers", "market", "competition"},
		"situation_assessment": {"current", "process", "processes", "system", "systems", "data", "employees", "challenge", "challenges", "problem"},
		"ai_goals":             {"ai", "artificial intelligence", "automation", "automate", "machine learning", "prediction", "forecast", "chatbot", "model"},
		"project_plan":         {"timeline", "budget", "milestone", "milestones", "pilot", "phase", "resources", "team", "schedule", "roadmap"},
	},
	"de": {
		"business_objectives":  {"ziel", "ziele", "unternehmensziele", "umsatz", "wachstum", "strategie", "kunden", "markt", "wettbewerb"},
		"situation_assessment": {"aktuell", "derzeit", "prozess", "prozesse", "system", "systeme", "daten", "mitarbeiter", "herausforderung", "problem"},
		"ai_goals":             {"ki", "künstliche intelligenz", "automatisierung", "automatisieren", "maschinelles lernen", "vorhersage", "prognose", "chatbot", "modell"},
		"project_plan":         {"zeitplan", "budget", "meilenstein", "meilensteine", "pilot", "pilotprojekt", "phase", "ressourcen", "team", "roadmap"},
	},
}

// Topic is the coverage state of one consultation topic.
type Topic struct {
	Key     string
	Matches int
	Skipped bool
	Covered bool
}

// Title returns the display title of the topic.
func (t Topic) Title() string {
	return model.SectionTitle(t.Key)
}

// =============================================================================
// TOPIC TRACKER
// =============================================================================

// TopicTracker derives advisory topic coverage from the visible transcript.
// It is never sent to the server. Safe for concurrent use.
type TopicTracker struct {
	mu       sync.Mutex
	keys     []string
	keywords map[string][]string // normalised
	skipped  map[string]bool
	matches  map[string]int
}

// NewTopicTracker creates a tracker for the given language; unknown
// languages fall back to English.
func NewTopicTracker(lang string) *TopicTracker {
	table, ok := topicKeywords[lang]
	if !ok {
		table = topicKeywords["en"]
	}
	t := &TopicTracker{
		keys:     model.SurfaceConsultation.Sections(),
		keywords: make(map[string][]string, len(table)),
		skipped:  make(map[string]bool),
		matches:  make(map[string]int),
	}
	for key, words := range table {
		for _, w := range words {
			t.keywords[key] = append(t.keywords[key], normalizeText(w))
		}
	}
	return t
}

// Update recomputes coverage from the visible messages.
func (t *TopicTracker) Update(msgs []model.Message) []Topic {
	var b strings.Builder
	for _, m := range msgs {
		if !m.Visible() || m.Content == "" {
			continue
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	text := normalizeText(b.String())

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range t.keys {
		n := 0
		for _, kw := range t.keywords[key] {
			if strings.Contains(text, kw) {
				n++
			}
		}
		t.matches[key] = n
	}
	return t.topicsLocked()
}

// Skip marks a topic as covered by the user's choice.
func (t *TopicTracker) Skip(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.keywords[key]; !ok {
		return fmt.Errorf("unknown topic %q", key)
	}
	t.skipped[key] = true
	return nil
}

// Topics returns the coverage computed by the last Update.
func (t *TopicTracker) Topics() []Topic {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.topicsLocked()
}

// Reset clears matches and skips.
func (t *TopicTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipped = make(map[string]bool)
	t.matches = make(map[string]int)
}

func (t *TopicTracker) topicsLocked() []Topic {
	out := make([]Topic, 0, len(t.keys))
	for _, key := range t.keys {
		n := t.matches[key]
		skipped := t.skipped[key]
		out = append(out, Topic{
			Key:     key,
			Matches: n,
			Skipped: skipped,
			Covered: skipped || n >= MinTopicMatches,
		})
	}
	return out
}

// =============================================================================
// NORMALISATION
// =============================================================================

// normalizeText composes, case-folds and reduces text to space-separated
// words padded with one space on each side, so that " kw " matches whole
// words and phrases.
func normalizeText(s string) string {
	// A Caser is stateful; one per call.
	s = cases.Fold().String(norm.NFC.String(s))
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}
