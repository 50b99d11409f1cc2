// ABOUTME: Input sanitization applied to user text before it is rendered or sent
// ABOUTME: Escapes markup so the text displays literally in an HTML host

package chat

import (
	"errors"
	"strings"
)

// ErrEmptyMessage is returned for input that is empty after trimming.
var ErrEmptyMessage = errors.New("message is empty")

// Sanitizer turns raw user text into text that is safe to display.
type Sanitizer func(text string) string

// htmlTextEscaper matches what a browser produces when text assigned to
// textContent is read back through innerHTML. Quotes are left alone.
var htmlTextEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\u00a0", "&nbsp;",
)

// SanitizeHTML escapes the characters that carry meaning in HTML text.
func SanitizeHTML(text string) string {
	return htmlTextEscaper.Replace(text)
}

// ValidateMessage trims raw and rejects it when nothing is left.
func ValidateMessage(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrEmptyMessage
	}
	return text, nil
}
