package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	rawQueries  []string
	fileQueries []string
}

func (f *fakeSearcher) RawMatches(query string) (string, error) {
	f.rawQueries = append(f.rawQueries, query)
	return `[{"type": "code_search_result"}]`, nil
}

func (f *fakeSearcher) FileNames(query string) (string, error) {
	f.fileQueries = append(f.fileQueries, query)
	return "demo/src/foo.py", nil
}

// fakeOllama replays a scripted sequence of chat turns, recording every
// request it receives. Each turn is a list of streamed response chunks.
func fakeOllama(t *testing.T, requests *[]api.ChatRequest, turns [][]api.ChatResponse) *api.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req api.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*requests = append(*requests, req)
		require.LessOrEqual(t, len(*requests), len(turns), "more chat requests than scripted turns")

		w.Header().Set("Content-Type", "application/x-ndjson")
		encoder := json.NewEncoder(w)
		for _, chunk := range turns[len(*requests)-1] {
			require.NoError(t, encoder.Encode(chunk))
		}
	}))
	t.Cleanup(server.Close)
	baseURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	return api.NewClient(baseURL, http.DefaultClient)
}

func TestSendToolLoop(t *testing.T) {
	var requests []api.ChatRequest
	turns := [][]api.ChatResponse{
		// first turn: the model requests a tool call
		{
			{
				Message: api.Message{
					Role: "assistant",
					ToolCalls: []api.ToolCall{
						{
							Function: api.ToolCallFunction{
								Name:      toolFileNames,
								Arguments: api.ToolCallFunctionArguments{"search_query": "foo lang:python"},
							},
						},
					},
				},
				Done:       true,
				DoneReason: "stop",
			},
		},
		// second turn: the model answers in two streamed chunks
		{
			{Message: api.Message{Role: "assistant", Content: "Found it in "}},
			{
				Message:    api.Message{Role: "assistant", Content: "demo/src/foo.py"},
				Done:       true,
				DoneReason: "stop",
				Metrics: api.Metrics{
					PromptEvalCount: 42,
					EvalCount:       7,
					TotalDuration:   3 * time.Second,
				},
			},
		},
	}
	client := fakeOllama(t, &requests, turns)
	searcher := &fakeSearcher{}
	conversation := NewConversation(client, "llama3.3", searcher, Options{Temperature: 0.2, NumCtx: 8192})

	var out bytes.Buffer
	require.NoError(t, conversation.Send(context.Background(), "where is foo defined?", &out))

	// the assistant text was streamed to the writer
	assert.Equal(t, "Found it in demo/src/foo.py", out.String())

	// the tool was executed with the model's arguments
	assert.Equal(t, []string{"foo lang:python"}, searcher.fileQueries)
	assert.Empty(t, searcher.rawQueries)

	require.Len(t, requests, 2)
	first := requests[0]
	assert.Equal(t, "llama3.3", first.Model)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, "system", first.Messages[0].Role)
	assert.Contains(t, first.Messages[0].Content, "ALL CAPS")
	assert.Contains(t, first.Messages[0].Content, "more than 9 expressions")
	assert.Equal(t, "user", first.Messages[1].Role)
	assert.Len(t, first.Tools, 2)
	assert.EqualValues(t, 0.2, first.Options["temperature"])
	assert.EqualValues(t, 8192, first.Options["num_ctx"])

	// the second request carries the assistant tool call and the tool result
	second := requests[1]
	require.Len(t, second.Messages, 4)
	assert.Equal(t, "assistant", second.Messages[2].Role)
	require.Len(t, second.Messages[2].ToolCalls, 1)
	assert.Equal(t, "tool", second.Messages[3].Role)
	assert.Equal(t, "demo/src/foo.py", second.Messages[3].Content)
	assert.Equal(t, toolFileNames, second.Messages[3].ToolName)
}

func TestSendWithoutToolCalls(t *testing.T) {
	var requests []api.ChatRequest
	turns := [][]api.ChatResponse{
		{
			{Message: api.Message{Role: "assistant", Content: "hello"}, Done: true, DoneReason: "stop"},
		},
	}
	client := fakeOllama(t, &requests, turns)
	conversation := NewConversation(client, "llama3.3", &fakeSearcher{}, Options{})

	var out bytes.Buffer
	require.NoError(t, conversation.Send(context.Background(), "hi", &out))
	assert.Equal(t, "hello", out.String())
	assert.Len(t, requests, 1)
}

func TestSendAccumulatesHistory(t *testing.T) {
	var requests []api.ChatRequest
	turns := [][]api.ChatResponse{
		{{Message: api.Message{Role: "assistant", Content: "one"}, Done: true}},
		{{Message: api.Message{Role: "assistant", Content: "two"}, Done: true}},
	}
	client := fakeOllama(t, &requests, turns)
	conversation := NewConversation(client, "llama3.3", &fakeSearcher{}, Options{})

	var out bytes.Buffer
	require.NoError(t, conversation.Send(context.Background(), "first", &out))
	require.NoError(t, conversation.Send(context.Background(), "second", &out))

	require.Len(t, requests, 2)
	// system, first user, first assistant, second user
	require.Len(t, requests[1].Messages, 4)
	assert.Equal(t, "first", requests[1].Messages[1].Content)
	assert.Equal(t, "one", requests[1].Messages[2].Content)
	assert.Equal(t, "second", requests[1].Messages[3].Content)

	// the system prompt is only added once
	for i, message := range requests[1].Messages {
		if i > 0 {
			assert.NotEqual(t, "system", message.Role)
		}
	}
}

func TestUsage(t *testing.T) {
	var requests []api.ChatRequest
	turns := [][]api.ChatResponse{
		{
			{
				Message:    api.Message{Role: "assistant", Content: "done"},
				Done:       true,
				DoneReason: "stop",
				Metrics:    api.Metrics{PromptEvalCount: 42, EvalCount: 7},
			},
		},
	}
	client := fakeOllama(t, &requests, turns)
	conversation := NewConversation(client, "llama3.3", &fakeSearcher{}, Options{})

	assert.Equal(t, "No usage information available yet.", conversation.Usage())

	var out bytes.Buffer
	require.NoError(t, conversation.Send(context.Background(), "hi", &out))
	usage := conversation.Usage()
	assert.Contains(t, usage, "prompt tokens: 42")
	assert.Contains(t, usage, "response tokens: 7")
}

func TestNewResetsHistory(t *testing.T) {
	var requests []api.ChatRequest
	turns := [][]api.ChatResponse{
		{{Message: api.Message{Role: "assistant", Content: "one"}, Done: true}},
	}
	client := fakeOllama(t, &requests, turns)
	conversation := NewConversation(client, "llama3.3", &fakeSearcher{}, Options{Temperature: 0.5})

	var out bytes.Buffer
	require.NoError(t, conversation.Send(context.Background(), "first", &out))
	require.NotEmpty(t, conversation.messages)

	fresh := conversation.New()
	assert.Empty(t, fresh.messages)
	assert.Equal(t, conversation.model, fresh.model)
	assert.Equal(t, conversation.options, fresh.options)
	assert.Equal(t, "No usage information available yet.", fresh.Usage())
}
