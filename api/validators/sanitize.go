package validators

import "strings"

// SanitizeName trims input and collapses inner whitespace runs to a single space.
func SanitizeName(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
