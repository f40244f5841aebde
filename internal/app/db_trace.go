package app

import (
	"regexp"
	"strings"
)

const maxTracedQueryLen = 256

var sqlWhitespace = regexp.MustCompile(`\s+`)

// collapseQuery compacts SQL text before it lands on a span attribute.
func collapseQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	flat := sqlWhitespace.ReplaceAllString(query, " ")
	if len(flat) <= maxTracedQueryLen {
		return flat
	}

	return flat[:maxTracedQueryLen] + "..."
}
