package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var promptStyle = color.New(color.FgCyan, color.Bold)

// handler is what the shell needs from a conversation. The indirection
// keeps the shell testable without a live model.
type handler interface {
	Send(ctx context.Context, prompt string, out io.Writer) error
	Usage() string
}

// Shell is the interactive command loop. It reads one line at a time,
// dispatches the recognized commands, and treats any other input as a
// follow-up prompt for the current conversation.
type Shell struct {
	handler    handler
	newHandler func() handler
	in         io.Reader
	out        io.Writer
}

// NewShell returns a shell driving the given conversation.
func NewShell(conversation *Conversation, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		handler: conversation,
		newHandler: func() handler {
			return conversation.New()
		},
		in:  in,
		out: out,
	}
}

// Prompt sends one prompt through the current conversation. It is also used
// for the initial prompt before the command loop starts.
func (s *Shell) Prompt(ctx context.Context, prompt string) error {
	if err := s.handler.Send(ctx, prompt, s.out); err != nil {
		return err
	}
	fmt.Fprintln(s.out)
	return nil
}

// Run processes commands until an exit command or EOF. Model and tool
// failures terminate the loop and propagate to the caller.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, "Welcome to the interactive shell. Type 'help' for commands.")
	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, promptStyle.Sprint("LLM> "))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			fmt.Fprintln(s.out)
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		command, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		switch command {
		case "":
			fmt.Fprintln(s.out, "No command entered.")
		case "exit", "quit":
			fmt.Fprintln(s.out, "Exiting the interactive shell.")
			return nil
		case "help":
			fmt.Fprintln(s.out, "Commands:")
			fmt.Fprintln(s.out, "  chat <prompt>  start a new conversation with the given prompt")
			fmt.Fprintln(s.out, "  usage          show usage statistics of the last response")
			fmt.Fprintln(s.out, "  exit           leave the shell")
			fmt.Fprintln(s.out, "Any other input is sent to the model as a follow-up prompt.")
		case "usage":
			fmt.Fprintln(s.out, s.handler.Usage())
		case "chat":
			if rest == "" {
				fmt.Fprintln(s.out, "Prompt cannot be empty.")
				continue
			}
			s.handler = s.newHandler()
			if err := s.Prompt(ctx, rest); err != nil {
				return err
			}
		default:
			if err := s.Prompt(ctx, line); err != nil {
				return err
			}
		}
	}
}
