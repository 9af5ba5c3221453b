package domain

import "strings"

var safeEmailReplacer = strings.NewReplacer(".", "-", "@", "-")

// Canonicalize map a raw email to the key used for user documents:
// every "." and "@" becomes "-". It is a one-way transform, never apply it to
// an already canonical id.
func Canonicalize(email string) string {
	return safeEmailReplacer.Replace(email)
}
