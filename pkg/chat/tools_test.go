package chat

import (
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolCall(name, query string) api.ToolCall {
	arguments := api.ToolCallFunctionArguments{}
	if query != "" {
		arguments["search_query"] = query
	}
	return api.ToolCall{
		Function: api.ToolCallFunction{
			Name:      name,
			Arguments: arguments,
		},
	}
}

func TestSearchTools(t *testing.T) {
	tools := searchTools()
	require.Len(t, tools, 2)
	names := []string{tools[0].Function.Name, tools[1].Function.Name}
	assert.Contains(t, names, toolRawMatches)
	assert.Contains(t, names, toolFileNames)
	for _, tool := range tools {
		assert.Equal(t, "function", tool.Type)
		assert.Equal(t, []string{"search_query"}, tool.Function.Parameters.Required)
		assert.Contains(t, tool.Function.Parameters.Properties, "search_query")
	}
}

func TestCallTool(t *testing.T) {
	t.Run("raw matches", func(t *testing.T) {
		searcher := &fakeSearcher{}
		result, err := callTool(searcher, toolCall(toolRawMatches, "foo"))
		require.NoError(t, err)
		assert.Contains(t, result, "code_search_result")
		assert.Equal(t, []string{"foo"}, searcher.rawQueries)
	})

	t.Run("file names", func(t *testing.T) {
		searcher := &fakeSearcher{}
		result, err := callTool(searcher, toolCall(toolFileNames, "foo"))
		require.NoError(t, err)
		assert.Equal(t, "demo/src/foo.py", result)
		assert.Equal(t, []string{"foo"}, searcher.fileQueries)
	})

	t.Run("missing query", func(t *testing.T) {
		_, err := callTool(&fakeSearcher{}, toolCall(toolFileNames, ""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "search_query")
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := callTool(&fakeSearcher{}, toolCall("delete_everything", "foo"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown tool")
	})
}
