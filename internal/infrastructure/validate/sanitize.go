package validate

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML neutralises markup in user supplied text before it is stored or broadcast.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}
