package upload

import (
	"crypto/rand"
	"path/filepath"
	"strings"
)

const (
	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// namedPrefixLen is the random prefix for files with a client name,
	// anonymousPrefixLen for files without one.
	namedPrefixLen     = 6
	anonymousPrefixLen = 10

	// maxSlugLen keeps prefix + slug under common 255-byte name limits.
	maxSlugLen = 200
	maxExtLen  = 32
)

// randomString returns n characters drawn uniformly from [A-Za-z0-9].
func randomString(n int) string {
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2)
	// 248 is the largest multiple of 62 that fits in a byte; rejecting
	// bytes above it keeps the distribution uniform.
	const limit = 256 - 256%len(alphanumeric)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

// Slug lowercases name, keeps ASCII letters, digits and '.', replaces every
// run of other characters with a single '-', and trims '-' from both ends.
func Slug(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	prevDash := false

	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			sb.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				sb.WriteByte('-')
				prevDash = true
			}
		}
	}

	return truncateSlug(strings.Trim(sb.String(), "-"))
}

// truncateSlug shortens an over-long slug, keeping a short extension.
func truncateSlug(slug string) string {
	if len(slug) <= maxSlugLen {
		return slug
	}
	ext := filepath.Ext(slug)
	if len(ext) > maxExtLen {
		ext = ""
	}
	head := strings.TrimRight(slug[:maxSlugLen-len(ext)], "-")
	return head + ext
}

// StoredName builds the on-disk name for an upload. With a client name it is
// "<6 random>-<slug>", without one (or when nothing survives slugging)
// "<10 random>-upload".
func StoredName(clientName string) string {
	slug := Slug(clientName)
	if slug == "" {
		return randomString(anonymousPrefixLen) + "-upload"
	}
	return randomString(namedPrefixLen) + "-" + slug
}
