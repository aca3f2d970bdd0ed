package util

import (
	"regexp"
	"strings"
)

// Slugify creates a URL-friendly slug from a title or heading
func Slugify(title string) string {
	// Convert to lowercase
	slug := strings.ToLower(title)

	// Replace spaces and special characters with hyphens
	reg := regexp.MustCompile(`[^a-z0-9]+`)
	slug = reg.ReplaceAllString(slug, "-")

	// Remove leading/trailing hyphens
	slug = strings.Trim(slug, "-")

	// Limit length
	if len(slug) > 80 {
		slug = slug[:80]
		slug = strings.Trim(slug, "-")
	}

	return slug
}

// EscapeAttr escapes double quotes for use inside a double-quoted HTML attribute
func EscapeAttr(s string) string {
	return strings.ReplaceAll(s, `"`, "&quot;")
}

// FileExtensionFromURL extracts a file extension from a URL path,
// ignoring query parameters. Returns "" when no usable extension exists.
func FileExtensionFromURL(rawURL string) string {
	trimmed := rawURL
	if idx := strings.IndexAny(trimmed, "?#"); idx != -1 {
		trimmed = trimmed[:idx]
	}

	parts := strings.Split(trimmed, "/")
	last := parts[len(parts)-1]

	dot := strings.LastIndex(last, ".")
	if dot == -1 || dot == len(last)-1 {
		return ""
	}

	ext := strings.ToLower(last[dot+1:])
	validExts := []string{"jpg", "jpeg", "png", "gif", "webp", "svg"}
	for _, validExt := range validExts {
		if ext == validExt {
			return "." + ext
		}
	}
	return ""
}
