package codesearch

import "strings"

// SearchResult is a single file-level match returned by the Bitbucket code
// search endpoint. Only entries whose Type is "code_search_result" are
// processed.
type SearchResult struct {
	Type              string         `json:"type"`
	ContentMatchCount int            `json:"content_match_count,omitempty"`
	ContentMatches    []ContentMatch `json:"content_matches"`
	PathMatches       []Segment      `json:"path_matches,omitempty"`
	File              File           `json:"file"`
}

type File struct {
	Path  string `json:"path"`
	Links Links  `json:"links"`
}

type Links struct {
	Self Link `json:"self"`
}

type Link struct {
	Href string `json:"href"`
}

// ContentMatch is a block of matched lines within a single file.
type ContentMatch struct {
	Lines []MatchLine `json:"lines"`
}

type MatchLine struct {
	Line     int       `json:"line"`
	Segments []Segment `json:"segments"`
}

// Segment is a contiguous run of text within a line, flagged when it matched
// the search query.
type Segment struct {
	Text  string `json:"text"`
	Match bool   `json:"match,omitempty"`
}

// FormattedMatch pairs a repository-qualified file name with its rendered
// match lines.
type FormattedMatch struct {
	Name    string
	Matches string
}

// repoName extracts the repository name from a result's self link. The link
// looks like
// https://api.bitbucket.org/2.0/repositories/{workspace}/{repo}/src/{commit}/{path},
// so the repository name is the second path segment after "/repositories/".
// A malformed or marker-less URL yields an empty string, never an error.
func repoName(selfLink string) string {
	_, rest, found := strings.Cut(selfLink, "/repositories/")
	if !found {
		return ""
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// QualifiedPath returns the file path prefixed with the repository name when
// one can be resolved from the result's self link, otherwise the bare path.
func (r *SearchResult) QualifiedPath() string {
	if repo := repoName(r.File.Links.Self.Href); repo != "" {
		return repo + "/" + r.File.Path
	}
	return r.File.Path
}
