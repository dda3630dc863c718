package platform

import "strings"

// SafeName reduces a name to lowercase letters, digits, dashes, and
// underscores so it can appear in a filesystem path. Anything else becomes an
// underscore.
func SafeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
