package format

import "strings"

var mdEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"[", `\[`,
	"`", "\\`",
)

// EscapeMD escapes Markdown special characters in user-supplied text so it
// can be embedded into messages sent with Markdown parse mode.
func EscapeMD(text string) string {
	return mdEscaper.Replace(text)
}

// Bold wraps user-supplied text in bold markers, escaping its content first.
func Bold(text string) string {
	return "*" + EscapeMD(text) + "*"
}

// Code wraps text in inline code markers.
func Code(text string) string {
	return "`" + strings.ReplaceAll(text, "`", "'") + "`"
}
