package codesearch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// resultType is the discriminator of the search result entries this client
// processes; every other entry type is ignored.
const resultType = "code_search_result"

// Bitbucket searches code in a Bitbucket Cloud workspace via the
// /workspaces/{workspace}/search/code endpoint. Retry and backoff on
// transient HTTP failures are delegated to the retryablehttp client; this
// layer never retries on its own.
type Bitbucket struct {
	config Config
	client *http.Client
	cache  *pageCache
}

// New returns a Bitbucket client for the given configuration, filling in
// defaults for unset fields and opening the page cache unless it is
// disabled. The caller must call Close when done.
func New(config Config) (*Bitbucket, error) {
	if config.APIURL == "" {
		config.APIURL = DefaultAPIURL
	}
	if config.MaxPages == 0 {
		config.MaxPages = DefaultMaxPages
	}
	if config.CacheDir == "" {
		config.CacheDir = DefaultCacheDir
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = logrus.StandardLogger()
	b := Bitbucket{
		config: config,
		client: retryClient.StandardClient(),
	}
	if !config.NoCache {
		cache, err := openPageCache(config.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open page cache: %w", err)
		}
		b.cache = cache
	}
	return &b, nil
}

// Close releases the page cache. Safe to call when caching is disabled.
func (b *Bitbucket) Close() error {
	if b.cache != nil {
		return b.cache.Close()
	}
	return nil
}

type searchResponse struct {
	Values []SearchResult `json:"values"`
	Next   string         `json:"next"`
}

// fetchPage returns the raw response body for one page of search results,
// consulting the cache first when enabled and populating it after a miss.
func (b *Bitbucket) fetchPage(query string, page int) ([]byte, error) {
	if b.cache != nil {
		body, err := b.cache.get(page, query)
		if err != nil {
			return nil, fmt.Errorf("cache lookup failed: %w", err)
		}
		if body != nil {
			logrus.Infof("Using cached response for page %d", page)
			return body, nil
		}
	}
	logrus.Infof("Fetching page %d", page)
	u, err := url.Parse(b.config.APIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API URL: %w", err)
	}
	u = u.JoinPath("workspaces", b.config.Workspace, "search", "code")
	q := u.Query()
	q.Set("search_query", query)
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if b.config.Username != "" || b.config.Password != "" {
		req.SetBasicAuth(b.config.Username, b.config.Password)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if b.cache != nil {
		if err := b.cache.put(page, query, body, b.config.CacheTTL); err != nil {
			return nil, fmt.Errorf("failed to cache page %d: %w", page, err)
		}
	}
	return body, nil
}

// search fetches every page of results for the query, keeping code search
// result entries in the order returned by the API. Pagination stops when a
// response carries no "next" page, or when the page cap is reached; hitting
// the cap logs a warning and returns what was gathered so far. Results are
// not de-duplicated across pages.
func (b *Bitbucket) search(query string) ([]SearchResult, error) {
	var all []SearchResult
	page := 1
	for {
		body, err := b.fetchPage(query, page)
		if err != nil {
			return nil, err
		}
		var response searchResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("failed to decode page %d: %w", page, err)
		}
		for _, result := range response.Values {
			if result.Type == resultType {
				all = append(all, result)
			}
		}
		if response.Next == "" {
			break
		}
		page++
		if page > b.config.MaxPages {
			logrus.Warningf("Reached maximum page limit of %d", b.config.MaxPages)
			break
		}
	}
	return all, nil
}

// FileNames returns the newline-joined repository-qualified paths of every
// file matching the query.
func (b *Bitbucket) FileNames(query string) (string, error) {
	results, err := b.search(query)
	if err != nil {
		return "", err
	}
	var names []string
	for _, result := range results {
		if result.File.Path == "" {
			continue
		}
		names = append(names, result.QualifiedPath())
	}
	return strings.Join(names, "\n"), nil
}

// Matches returns the formatted match lines of each matching file, skipping
// files whose matches render to nothing.
func (b *Bitbucket) Matches(query string, highlight bool) ([]FormattedMatch, error) {
	results, err := b.search(query)
	if err != nil {
		return nil, err
	}
	var formatted []FormattedMatch
	for _, result := range results {
		text := FormatContentMatches(result.ContentMatches, highlight)
		if text == "" {
			continue
		}
		formatted = append(formatted, FormattedMatch{
			Name:    result.QualifiedPath(),
			Matches: text,
		})
	}
	return formatted, nil
}

// RawMatches returns the search results re-encoded as a JSON array.
func (b *Bitbucket) RawMatches(query string) (string, error) {
	results, err := b.search(query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	return string(encoded), nil
}
