package utils

import "github.com/microcosm-cc/bluemonday"

var (
	// ugcPolicy keeps the formatting tags users legitimately produce in
	// question bodies and answers.
	ugcPolicy = bluemonday.UGCPolicy()
	// textPolicy strips all markup. Names and titles never contain HTML.
	textPolicy = bluemonday.StrictPolicy()
)

// Sanitize cleans user-generated HTML content, dropping scripts and event
// handlers while keeping basic formatting.
func Sanitize(input string) string {
	return ugcPolicy.Sanitize(input)
}

// SanitizeText strips every tag from a plain-text field such as a display
// name or a guest asker name.
func SanitizeText(input string) string {
	return textPolicy.Sanitize(input)
}
