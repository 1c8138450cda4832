package chat

import (
	"fmt"

	"github.com/ollama/ollama/api"
)

// Searcher is the part of the Bitbucket client the conversation needs.
type Searcher interface {
	// RawMatches returns the search results for the query as JSON.
	RawMatches(query string) (string, error)
	// FileNames returns the newline-joined names of the matching files.
	FileNames(query string) (string, error)
}

const (
	toolRawMatches = "code_search_raw_matches"
	toolFileNames  = "code_search_file_names"
)

// searchTools returns the tool definitions advertised to the model.
func searchTools() api.Tools {
	queryProperties := map[string]api.ToolProperty{
		"search_query": {
			Type:        api.PropertyType{"string"},
			Description: "The Bitbucket code search query",
		},
	}
	return api.Tools{
		{
			Type: "function",
			Function: api.ToolFunction{
				Name:        toolRawMatches,
				Description: "Search code in the Bitbucket workspace and return the raw search results as JSON, including the matched lines of each file",
				Parameters: api.ToolFunctionParameters{
					Type:       "object",
					Required:   []string{"search_query"},
					Properties: queryProperties,
				},
			},
		},
		{
			Type: "function",
			Function: api.ToolFunction{
				Name:        toolFileNames,
				Description: "Search code in the Bitbucket workspace and return only the repository-qualified names of the matching files, one per line",
				Parameters: api.ToolFunctionParameters{
					Type:       "object",
					Required:   []string{"search_query"},
					Properties: queryProperties,
				},
			},
		},
	}
}

// callTool executes one model-requested tool invocation.
func callTool(searcher Searcher, call api.ToolCall) (string, error) {
	query, _ := call.Function.Arguments["search_query"].(string)
	if query == "" {
		return "", fmt.Errorf("tool %q called without a search_query", call.Function.Name)
	}
	switch call.Function.Name {
	case toolRawMatches:
		return searcher.RawMatches(query)
	case toolFileNames:
		return searcher.FileNames(query)
	default:
		return "", fmt.Errorf("unknown tool %q", call.Function.Name)
	}
}
