// Package executor handles user confirmation and the few shell commands amphy
// runs on the user's behalf (installing Ollama during setup).
// Confirm uses injectable io.Reader/io.Writer for testability.
package executor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/hpkotak/amphy/internal/platform"
)

// Confirm prompts the user for yes/no confirmation.
// defaultYes controls what happens when the user presses Enter without input.
// in and out are injectable for testing.
func Confirm(prompt string, defaultYes bool, in io.Reader, out io.Writer) bool {
	hint := "[Y/n]"
	if !defaultYes {
		hint = "[y/N]"
	}
	_, _ = fmt.Fprintf(out, "%s %s: ", prompt, hint)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}

	input := strings.TrimSpace(strings.ToLower(scanner.Text()))

	switch input {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return false
	}
}

// OneLine returns a reader that yields a single line obtained from next on
// first Read. It lets Confirm share one buffered input with other prompts
// without reading ahead.
func OneLine(next func() (string, error)) io.Reader {
	return &oneLine{next: next}
}

type oneLine struct {
	next func() (string, error)
	buf  []byte
	read bool
}

func (r *oneLine) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		line, err := r.next()
		line = strings.TrimRight(line, "\r\n")
		if err != nil && line == "" {
			if err == io.EOF {
				return 0, io.EOF
			}
			return 0, err
		}
		r.buf = []byte(line + "\n")
	}
	if len(r.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Run executes a shell command, inheriting stdin and writing to stdout/stderr.
func Run(command string, stdout, stderr io.Writer) error {
	cmd := exec.Command(platform.Shell(), "-c", command)
	cmd.Stdin = os.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}
