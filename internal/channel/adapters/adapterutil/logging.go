// Package adapterutil holds helpers shared by channel adapters.
package adapterutil

import "strings"

const previewLimit = 120

// SummarizeText returns a single-line preview of text for logs, cut at
// previewLimit runes.
func SummarizeText(text string) string {
	value := strings.Join(strings.Fields(text), " ")
	runes := []rune(value)
	if len(runes) <= previewLimit {
		return value
	}
	return string(runes[:previewLimit]) + "..."
}
