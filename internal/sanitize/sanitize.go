// Package sanitize cleans user-provided text before it is stored. Memory
// text and tag names are plain text by contract, so the policy here strips
// every HTML element instead of allowing a formatting subset. Uses
// bluemonday's strict policy to remove script payloads, event handlers and
// javascript: URLs that would otherwise reach the map popups verbatim.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton strict bluemonday policy.
// Initialized once via sync.Once for thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared strict policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips all HTML from user-provided text and returns the remaining
// plain text. bluemonday entity-escapes the survivors, so the result is
// unescaped again to keep literal characters like "<" and "&" intact.
//
// This MUST be called on memory text and tag names before storing them.
func Text(input string) string {
	if input == "" {
		return ""
	}
	return html.UnescapeString(getPolicy().Sanitize(input))
}

// TagName sanitizes a tag name: strips HTML, trims surrounding whitespace
// and collapses internal runs of whitespace to a single space. Tag names
// are compared case-sensitively, so no case folding happens here.
func TagName(input string) string {
	cleaned := Text(input)
	return strings.Join(strings.Fields(cleaned), " ")
}
