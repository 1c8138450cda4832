package codesearch

import (
	"fmt"
	"strings"
)

// FormatContentMatches flattens the nested match blocks of a search result
// into one human-readable line per matched line, in the order returned by
// the API. Lines without segments, and lines whose concatenated text is
// blank, are skipped. When highlight is true the matching segments are
// wrapped in "**" markers. Returns an empty string when no lines survive
// filtering.
func FormatContentMatches(matches []ContentMatch, highlight bool) string {
	var formatted []string
	for _, match := range matches {
		for _, line := range match.Lines {
			if len(line.Segments) == 0 {
				continue
			}
			var sb strings.Builder
			for _, segment := range line.Segments {
				if highlight && segment.Match {
					sb.WriteString("**")
					sb.WriteString(segment.Text)
					sb.WriteString("**")
				} else {
					sb.WriteString(segment.Text)
				}
			}
			text := sb.String()
			if strings.TrimSpace(text) == "" {
				continue
			}
			formatted = append(formatted, fmt.Sprintf("Line %d: %s", line.Line, text))
		}
	}
	return strings.Join(formatted, "\n")
}
