package domain

import "strings"

// =============================================================================
// Project Names
// =============================================================================

// ProjectSlug converts a name to a compose project name.
//
// The transformation rules are:
//   - Uppercase letters are lowercased
//   - Lowercase letters, digits, '-' and '_' are kept
//   - Spaces become '-'
//   - All other characters are removed
//   - Leading '-' and '_' are trimmed, since compose requires the name to
//     start with a letter or digit
//
// Example:
//
//	ProjectSlug("My-App_1")  // returns "my-app_1"
//	ProjectSlug("web.v2")    // returns "webv2"
//	ProjectSlug("_Shop")     // returns "shop"
func ProjectSlug(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	return strings.TrimLeft(b.String(), "-_")
}
