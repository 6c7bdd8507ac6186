// Package category normalizes free-form category labels into file names,
// Anki deck names and tags.
package category

import (
	"regexp"
	"strings"
)

// Default is used whenever a label sanitizes to nothing.
const Default = "default_category"

var (
	separators = regexp.MustCompile(`[\\/*?:"<>|\s]+`)
	disallowed = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// generic labels that never get their own deck
var undesired = map[string]struct{}{
	strings.ToLower(Default): {},
	"unknown":                {},
	"general":                {},
	"misc":                   {},
}

// Sanitize maps a label to a filesystem-safe token: separator runs become a
// single underscore and anything outside [A-Za-z0-9_-] is dropped.
func Sanitize(label string) string {
	s := separators.ReplaceAllString(strings.TrimSpace(label), "_")
	s = disallowed.ReplaceAllString(s, "")
	if s == "" {
		return Default
	}
	return s
}

// DeckName places a specific category under the parent of the default deck.
// Generic categories stay in the default deck.
func DeckName(label, defaultDeck string) string {
	token := Sanitize(label)
	if _, skip := undesired[strings.ToLower(token)]; skip {
		return defaultDeck
	}
	parent, _, _ := strings.Cut(defaultDeck, "::")
	if parent == "" {
		return token
	}
	return parent + "::" + token
}

// Tag turns a category into a single Anki tag, or "" when it carries no
// information.
func Tag(label string) string {
	token := Sanitize(strings.ReplaceAll(label, "::", "_"))
	if strings.EqualFold(token, Default) {
		return ""
	}
	return token
}
