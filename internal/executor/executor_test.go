package executor

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultYes bool
		want       bool
	}{
		{"enter with default yes", "\n", true, true},
		{"enter with default no", "\n", false, false},
		{"explicit y", "y\n", false, true},
		{"explicit Y", "Y\n", false, true},
		{"explicit yes", "yes\n", false, true},
		{"explicit n", "n\n", true, false},
		{"explicit no", "no\n", true, false},
		{"explicit N", "N\n", true, false},
		{"garbage input", "asdf\n", true, false},
		{"empty input with spaces", "  \n", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := strings.NewReader(tt.input)
			out := &bytes.Buffer{}
			got := Confirm("Test?", tt.defaultYes, in, out)
			if got != tt.want {
				t.Errorf("Confirm(%q, defaultYes=%v) = %v, want %v",
					tt.input, tt.defaultYes, got, tt.want)
			}
		})
	}
}

func TestConfirmPromptBeforeRead(t *testing.T) {
	out := &bytes.Buffer{}
	var promptSeenBeforeRead bool
	in := OneLine(func() (string, error) {
		promptSeenBeforeRead = strings.Contains(out.String(), "Delete? [y/N]: ")
		return "y\n", nil
	})

	if !Confirm("Delete?", false, in, out) {
		t.Error("Confirm() = false, want true")
	}
	if !promptSeenBeforeRead {
		t.Error("prompt should be written before input is read")
	}
}

func TestOneLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		err     error
		want    string
		wantErr bool
	}{
		{name: "line with newline", line: "yes\n", want: "yes\n"},
		{name: "crlf", line: "no\r\n", want: "no\n"},
		{name: "last line without newline", line: "y", err: io.EOF, want: "y\n"},
		{name: "eof", err: io.EOF, want: ""},
		{name: "read error", err: errors.New("tty gone"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			r := OneLine(func() (string, error) {
				calls++
				return tt.line, tt.err
			})
			got, err := io.ReadAll(r)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ReadAll() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadAll() unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("ReadAll() = %q, want %q", got, tt.want)
			}
			if calls != 1 {
				t.Errorf("next called %d times, want 1", calls)
			}
		})
	}
}

func TestOneLineLeavesRestBuffered(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("y\nsecond\n"))
	next := func() (string, error) { return br.ReadString('\n') }

	if !Confirm("First?", false, OneLine(next), &bytes.Buffer{}) {
		t.Fatal("first Confirm() = false, want true")
	}
	rest, _ := br.ReadString('\n')
	if rest != "second\n" {
		t.Errorf("remaining input = %q, want %q", rest, "second\n")
	}
}

func TestRun(t *testing.T) {
	t.Setenv("SHELL", "/bin/sh")

	var stdout, stderr bytes.Buffer
	if err := Run("echo out; echo err 1>&2", &stdout, &stderr); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if stdout.String() != "out\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "out\n")
	}
	if stderr.String() != "err\n" {
		t.Errorf("stderr = %q, want %q", stderr.String(), "err\n")
	}

	if err := Run("exit 3", io.Discard, io.Discard); err == nil {
		t.Error("Run() with failing command expected error, got nil")
	}
}
