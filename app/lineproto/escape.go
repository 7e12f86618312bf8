package lineproto

import "strings"

var (
	tagEscaper = strings.NewReplacer(
		`\`, `\\`,
		",", `\,`,
		"=", `\=`,
		" ", `\ `,
	)
	tagUnescaper = strings.NewReplacer(
		`\\`, `\`,
		`\,`, ",",
		`\=`, "=",
		`\ `, " ",
	)
	fieldStringEscaper = strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
	)
	fieldStringUnescaper = strings.NewReplacer(
		`\\`, `\`,
		`\"`, `"`,
	)
)

// EscapeTag escapes a tag key or value. The replacer works in a single pass,
// so a backslash it inserts is never escaped a second time.
func EscapeTag(s string) string {
	return tagEscaper.Replace(s)
}

// UnescapeTag reverses EscapeTag.
func UnescapeTag(s string) string {
	return tagUnescaper.Replace(s)
}

// EscapeFieldString escapes the contents of a double-quoted string field.
// The surrounding quotes are not added.
func EscapeFieldString(s string) string {
	return fieldStringEscaper.Replace(s)
}

// UnescapeFieldString reverses EscapeFieldString.
func UnescapeFieldString(s string) string {
	return fieldStringUnescaper.Replace(s)
}
