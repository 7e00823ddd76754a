// Package repl implements the interactive study chat.
//
// Notes are reloaded every turn (not cached) because they can change between
// prompts, including from another device through the sync area. A session is
// created per turn: local sessions are spent after one prompt, and the system
// prompt carries the current notes. History is capped and sent inline with
// each question.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hpkotak/amphy/internal/executor"
	"github.com/hpkotak/amphy/internal/notes"
	"github.com/hpkotak/amphy/internal/prompt"
	"github.com/hpkotak/amphy/internal/session"
)

const (
	chatTimeout     = 120 * time.Second
	maxHistoryTurns = 6
)

// Sessions creates a session per turn.
type Sessions interface {
	Create(ctx context.Context, cfg session.Config) (*session.Session, *session.Advisory, error)
}

// Prompter runs requests against a session.
type Prompter interface {
	Prompt(ctx context.Context, s *session.Session, text string) (string, error)
	Summarize(ctx context.Context, s *session.Session, text string) (string, *session.Advisory, error)
}

// Notebook is the note access the chat needs.
type Notebook interface {
	List(ctx context.Context) ([]notes.Note, error)
	Delete(ctx context.Context, index int) (notes.Note, error)
}

// Deps wires the chat to its collaborators.
type Deps struct {
	Sessions Sessions
	Prompter Prompter
	Notes    Notebook
	Config   session.Config
}

type turn struct {
	question string
	answer   string
}

// Run starts the interactive loop. It returns nil on exit, quit, or EOF.
func Run(ctx context.Context, d Deps, in io.Reader, out io.Writer) error {
	_, _ = fmt.Fprintln(out, "Amphy study chat (:notes, :summarize, :rm <n>, exit)")
	_, _ = fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	var history []turn

	for {
		_, _ = fmt.Fprint(out, "amphy> ")

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				_, _ = fmt.Fprintf(out, "\nInput error: %v\n", err)
				return err
			}
			_, _ = fmt.Fprintln(out)
			return nil // EOF (Ctrl+D)
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "exit" || input == "quit":
			_, _ = fmt.Fprintln(out, "Bye!")
			return nil
		case input == ":notes":
			showNotes(ctx, d, out)
			continue
		case input == ":summarize":
			if err := summarize(ctx, d, out); err != nil {
				return err
			}
			continue
		case strings.HasPrefix(input, ":rm"):
			removeNote(ctx, d, strings.TrimSpace(strings.TrimPrefix(input, ":rm")), scanner, out)
			continue
		}

		list, err := d.Notes.List(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}

		answer, err := ask(ctx, d, list, history, input, out)
		if err != nil {
			var cfgErr *session.ConfigError
			if errors.As(err, &cfgErr) {
				_, _ = fmt.Fprintf(out, "%s\n", cfgErr.Advisory.String())
				return err
			}
			_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}
		if answer == "" {
			continue
		}

		history = append(history, turn{question: input, answer: answer})
		if len(history) > maxHistoryTurns {
			history = history[len(history)-maxHistoryTurns:]
		}
	}
}

// ask runs one question through a fresh session and prints the reply. It
// returns "" when an advisory was printed instead.
func ask(ctx context.Context, d Deps, list []notes.Note, history []turn, input string, out io.Writer) (string, error) {
	cfg := d.Config
	cfg.SystemPrompt = strings.TrimSpace(cfg.SystemPrompt + "\n\n" + prompt.StudySystemPrompt(notes.Texts(list)))

	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	s, adv, err := d.Sessions.Create(ctx, cfg)
	if err != nil {
		return "", err
	}
	if adv != nil {
		_, _ = fmt.Fprintf(out, "\n  Note: %s\n\n", adv.String())
		return "", nil
	}
	defer func() { _ = s.Close(ctx) }()

	question := withHistory(history, input)
	raw, err := d.Prompter.Prompt(ctx, s, question)
	if err != nil {
		return "", err
	}
	if s.Kind() == session.KindLocal && raw == question {
		// The local budget check hands the input back unchanged.
		_, _ = fmt.Fprintln(out, "\n  Note: question plus history is too long for the local model. Try a shorter question.")
		_, _ = fmt.Fprintln(out)
		return "", nil
	}

	parsed := prompt.ParseStudyResponse(raw)
	_, _ = fmt.Fprintf(out, "\n%s\n", parsed.Text)
	for _, n := range parsed.Citations {
		if n <= len(list) {
			note := list[n-1]
			_, _ = fmt.Fprintf(out, "  [%d] %s\n", n, sourceLabel(note))
		}
	}
	_, _ = fmt.Fprintln(out)
	return parsed.Text, nil
}

func withHistory(history []turn, input string) string {
	if len(history) == 0 {
		return input
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, t := range history {
		fmt.Fprintf(&b, "User: %s\nAmphy: %s\n", t.question, t.answer)
	}
	fmt.Fprintf(&b, "\nUser: %s", input)
	return b.String()
}

func sourceLabel(n notes.Note) string {
	text := n.Text
	if r := []rune(text); len(r) > 60 {
		text = string(r[:57]) + "..."
	}
	if n.Tab == "" {
		return text
	}
	return fmt.Sprintf("%s (%s)", text, n.Tab)
}

func showNotes(ctx context.Context, d Deps, out io.Writer) {
	list, err := d.Notes.List(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
		return
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(out, "  No notes yet.")
		_, _ = fmt.Fprintln(out)
		return
	}
	for i, n := range list {
		_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, sourceLabel(n))
	}
	_, _ = fmt.Fprintln(out)
}

func summarize(ctx context.Context, d Deps, out io.Writer) error {
	list, err := d.Notes.List(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
		return nil
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(out, "  No notes to summarize.")
		_, _ = fmt.Fprintln(out)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	s, adv, err := d.Sessions.Create(ctx, d.Config)
	if err != nil {
		var cfgErr *session.ConfigError
		if errors.As(err, &cfgErr) {
			_, _ = fmt.Fprintf(out, "%s\n", cfgErr.Advisory.String())
			return err
		}
		_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
		return nil
	}
	if adv != nil {
		_, _ = fmt.Fprintf(out, "\n  Note: %s\n\n", adv.String())
		return nil
	}
	defer func() { _ = s.Close(ctx) }()

	text := strings.Join(notes.Texts(list), "\n\n")
	summary, adv, err := d.Prompter.Summarize(ctx, s, text)
	switch {
	case err != nil:
		_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
	case adv != nil:
		_, _ = fmt.Fprintf(out, "\n  Note: %s\n\n", adv.String())
	default:
		_, _ = fmt.Fprintf(out, "\n%s\n\n", strings.TrimSpace(summary))
	}
	return nil
}

func removeNote(ctx context.Context, d Deps, arg string, scanner *bufio.Scanner, out io.Writer) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		_, _ = fmt.Fprintln(out, "  Usage: :rm <note number>")
		return
	}

	if !confirmLine(fmt.Sprintf("  Delete note %d?", n), scanner, out) {
		_, _ = fmt.Fprintln(out, "  Skipped.")
		return
	}

	removed, err := d.Notes.Delete(ctx, n-1)
	if err != nil {
		_, _ = fmt.Fprintf(out, "  Error: %v\n", err)
		return
	}
	_, _ = fmt.Fprintf(out, "  Deleted: %s\n", sourceLabel(removed))
}

// confirmLine asks a yes/no question, reading the answer from the shared
// scanner so buffered input meant for later prompts is not lost.
func confirmLine(question string, scanner *bufio.Scanner, out io.Writer) bool {
	in := executor.OneLine(func() (string, error) {
		if scanner.Scan() {
			return scanner.Text(), nil
		}
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	})
	return executor.Confirm(question, false, in, out)
}
