package chat

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"
)

// Options are the model options forwarded to Ollama on every turn.
type Options struct {
	Temperature float64
	NumCtx      int
}

// Conversation drives a tool-calling chat with an Ollama model. Message
// history accumulates across turns within a single run. A Conversation is
// not safe for concurrent use.
type Conversation struct {
	client      *api.Client
	model       string
	options     Options
	searcher    Searcher
	tools       api.Tools
	messages    []api.Message
	lastMetrics *api.Metrics
}

// NewConversation returns a conversation handler for the given model, with
// the Bitbucket search tools available to it.
func NewConversation(client *api.Client, model string, searcher Searcher, options Options) *Conversation {
	return &Conversation{
		client:   client,
		model:    model,
		options:  options,
		searcher: searcher,
		tools:    searchTools(),
	}
}

// New returns a fresh conversation with the same model, tools and options
// but no history.
func (c *Conversation) New() *Conversation {
	return NewConversation(c.client, c.model, c.searcher, c.options)
}

// Send runs one conversational turn: the prompt goes to the model, assistant
// text is streamed to out as it arrives, and any tool calls the model
// requests are executed synchronously and fed back until the model answers
// without requesting further tools. Errors from the model or from a tool
// propagate to the caller; there are no retries at this layer.
func (c *Conversation) Send(ctx context.Context, prompt string, out io.Writer) error {
	if len(c.messages) == 0 {
		c.messages = append(c.messages, api.Message{Role: "system", Content: SystemPrompt()})
	}
	c.messages = append(c.messages, api.Message{Role: "user", Content: prompt})

	for {
		var (
			content   strings.Builder
			toolCalls []api.ToolCall
		)
		req := api.ChatRequest{
			Model:    c.model,
			Messages: c.messages,
			Tools:    c.tools,
			Options: map[string]any{
				"temperature": c.options.Temperature,
				"num_ctx":     c.options.NumCtx,
			},
		}
		err := c.client.Chat(ctx, &req, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				content.WriteString(resp.Message.Content)
				if _, err := io.WriteString(out, resp.Message.Content); err != nil {
					return err
				}
			}
			toolCalls = append(toolCalls, resp.Message.ToolCalls...)
			if resp.Done {
				metrics := resp.Metrics
				c.lastMetrics = &metrics
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("chat request failed: %w", err)
		}
		c.messages = append(c.messages, api.Message{
			Role:      "assistant",
			Content:   content.String(),
			ToolCalls: toolCalls,
		})
		if len(toolCalls) == 0 {
			return nil
		}
		for _, call := range toolCalls {
			logrus.Debugf("Executing tool %q with arguments %v", call.Function.Name, call.Function.Arguments)
			result, err := callTool(c.searcher, call)
			if err != nil {
				return fmt.Errorf("tool %q failed: %w", call.Function.Name, err)
			}
			c.messages = append(c.messages, api.Message{
				Role:     "tool",
				Content:  result,
				ToolName: call.Function.Name,
			})
		}
	}
}

// Usage reports the token counts and duration of the last completed model
// turn.
func (c *Conversation) Usage() string {
	if c.lastMetrics == nil {
		return "No usage information available yet."
	}
	return fmt.Sprintf(
		"prompt tokens: %d, response tokens: %d, total duration: %s",
		c.lastMetrics.PromptEvalCount,
		c.lastMetrics.EvalCount,
		c.lastMetrics.TotalDuration,
	)
}
