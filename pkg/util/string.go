package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var slugSeparator = regexp.MustCompile(`[^a-z0-9\p{Han}]+`)

// GenerateSlug creates a URL-friendly slug from title
func GenerateSlug(title string) string {
	slug := strings.ToLower(title)
	slug = slugSeparator.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > 50 {
		slug = slug[:50]
		slug = strings.Trim(slug, "-")
	}

	return slug
}

// GeneratePostPath builds the dated path a website post is published under,
// e.g. 2024/05/01/spring-launch. Falls back to fallbackID when the title has
// no sluggable characters.
func GeneratePostPath(title, fallbackID string, date time.Time) string {
	slug := GenerateSlug(title)
	if slug == "" {
		slug = GenerateSlug(fallbackID)
	}
	return fmt.Sprintf("%s/%s", date.Format("2006/01/02"), slug)
}

// SplitList parses a comma separated list, tolerating brackets, quotes and blanks.
func SplitList(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return []string{}
	}

	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, "\"'")
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}
