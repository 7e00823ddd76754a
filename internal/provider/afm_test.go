package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeExecutable(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write executable: %v", err)
	}
}

func TestNewAFM(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		command string
		wantErr string
	}{
		{name: "valid", model: "afm-latest", command: "/usr/local/bin/afm-bridge"},
		{name: "empty model", model: "", command: "/usr/local/bin/afm-bridge", wantErr: "model cannot be empty"},
		{name: "empty command", model: "afm-latest", command: "", wantErr: "afm command cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewAFM(tt.model, tt.command)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("NewAFM() unexpected error: %v", err)
				}
				if e == nil {
					t.Fatal("NewAFM() returned nil engine")
				}
				return
			}
			if err == nil {
				t.Fatalf("NewAFM() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestAFMAvailabilityCommandChecks(t *testing.T) {
	t.Run("absolute path missing", func(t *testing.T) {
		e, _ := NewAFM("afm-latest", "/path/does/not/exist/afm-bridge")
		_, err := e.Availability(context.Background())
		if err == nil {
			t.Fatal("Availability() expected error, got nil")
		}
		if !strings.Contains(err.Error(), "not found") {
			t.Errorf("error = %q, want substring %q", err.Error(), "not found")
		}
	})

	t.Run("absolute path not executable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "afm-bridge")
		if err := os.WriteFile(path, []byte("#!/bin/sh\necho ok\n"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}

		e, _ := NewAFM("afm-latest", path)
		_, err := e.Availability(context.Background())
		if err == nil {
			t.Fatal("Availability() expected error, got nil")
		}
		if !strings.Contains(err.Error(), "not executable") {
			t.Errorf("error = %q, want substring %q", err.Error(), "not executable")
		}
	})

	t.Run("path lookup works", func(t *testing.T) {
		tmpDir := t.TempDir()
		script := filepath.Join(tmpDir, "afm-bridge")
		writeExecutable(t, script, "#!/bin/sh\ncat >/dev/null\necho '{\"status\":\"readily\"}'\n")

		t.Setenv("PATH", tmpDir+":"+os.Getenv("PATH"))
		e, _ := NewAFM("afm-latest", "afm-bridge")
		got, err := e.Availability(context.Background())
		if err != nil {
			t.Fatalf("Availability() unexpected error: %v", err)
		}
		if got != AvailabilityReadily {
			t.Errorf("Availability() = %q, want %q", got, AvailabilityReadily)
		}
	})
}

func TestAFMAvailabilityPassesStatusThrough(t *testing.T) {
	for _, status := range []string{"no", "after-download", "readily", "maybe-later"} {
		t.Run(status, func(t *testing.T) {
			script := filepath.Join(t.TempDir(), "afm-bridge")
			writeExecutable(t, script, "#!/bin/sh\ncat >/dev/null\necho '{\"status\":\""+status+"\"}'\n")

			e, _ := NewAFM("afm-latest", script)
			got, err := e.Availability(context.Background())
			if err != nil {
				t.Fatalf("Availability() unexpected error: %v", err)
			}
			if got != status {
				t.Errorf("Availability() = %q, want %q", got, status)
			}
		})
	}
}

func TestAFMSessionRequests(t *testing.T) {
	tmpDir := t.TempDir()
	reqPath := filepath.Join(tmpDir, "request.json")
	script := filepath.Join(tmpDir, "afm-bridge")

	body := `#!/bin/sh
cat > "$AFM_REQ_FILE"
echo '{"content":"a reply","tokens":42}'
`
	writeExecutable(t, script, body)
	t.Setenv("AFM_REQ_FILE", reqPath)

	e, _ := NewAFM("afm-latest", script)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, err := e.Create(ctx, "sys")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}

	n, err := m.CountTokens(ctx, "hello")
	if err != nil {
		t.Fatalf("CountTokens() unexpected error: %v", err)
	}
	if n != 42 {
		t.Errorf("CountTokens() = %d, want 42", n)
	}

	got, err := m.Prompt(ctx, "hello")
	if err != nil {
		t.Fatalf("Prompt() unexpected error: %v", err)
	}
	if got != "a reply" {
		t.Errorf("Prompt() = %q, want %q", got, "a reply")
	}

	reqData, err := os.ReadFile(reqPath)
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	reqText := string(reqData)
	for _, want := range []string{`"op":"prompt"`, `"model":"afm-latest"`, `"system":"sys"`, `"text":"hello"`} {
		if !strings.Contains(reqText, want) {
			t.Errorf("request missing %s: %s", want, reqText)
		}
	}

	if err := m.Destroy(ctx); err != nil {
		t.Fatalf("Destroy() unexpected error: %v", err)
	}
	if _, err := m.Prompt(ctx, "again"); err == nil || !strings.Contains(err.Error(), "destroyed") {
		t.Errorf("Prompt() after Destroy error = %v, want destroyed error", err)
	}
}

func TestAFMSummarizerSendsOptions(t *testing.T) {
	tmpDir := t.TempDir()
	reqPath := filepath.Join(tmpDir, "request.json")
	script := filepath.Join(tmpDir, "afm-bridge")
	writeExecutable(t, script, "#!/bin/sh\ncat > \"$AFM_REQ_FILE\"\necho '{\"content\":\"gist\"}'\n")
	t.Setenv("AFM_REQ_FILE", reqPath)

	e, _ := NewAFM("afm-latest", script)
	s, err := e.CreateSummarizer(context.Background(), SummarizerOptions{Type: "tl;dr", Format: "plain-text", Length: "short"})
	if err != nil {
		t.Fatalf("CreateSummarizer() unexpected error: %v", err)
	}
	got, err := s.Summarize(context.Background(), "long text")
	if err != nil {
		t.Fatalf("Summarize() unexpected error: %v", err)
	}
	if got != "gist" {
		t.Errorf("Summarize() = %q, want %q", got, "gist")
	}

	reqData, _ := os.ReadFile(reqPath)
	want := `"summarizer":{"type":"tl;dr","format":"plain-text","length":"short"}`
	if !strings.Contains(string(reqData), want) {
		t.Errorf("request = %s, want substring %s", reqData, want)
	}
}

func TestAFMCallErrors(t *testing.T) {
	tests := []struct {
		name       string
		scriptBody string
		wantErr    string
	}{
		{
			name: "bridge execution fails",
			scriptBody: `#!/bin/sh
echo "boom" 1>&2
exit 1
`,
			wantErr: "boom",
		},
		{
			name: "invalid response json",
			scriptBody: `#!/bin/sh
cat >/dev/null
echo "{not-json"
`,
			wantErr: "decoding afm response",
		},
		{
			name: "empty content",
			scriptBody: `#!/bin/sh
cat >/dev/null
echo '{"content":"   "}'
`,
			wantErr: "empty response from model",
		},
		{
			name: "output too large",
			scriptBody: `#!/bin/sh
cat >/dev/null
yes a | head -c 2000000
`,
			wantErr: "output exceeded limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := filepath.Join(t.TempDir(), "afm-bridge")
			writeExecutable(t, script, tt.scriptBody)

			e, _ := NewAFM("afm-latest", script)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			m, _ := e.Create(ctx, "")
			_, err := m.Prompt(ctx, "hello")
			if err == nil {
				t.Fatalf("Prompt() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Prompt() error = %q, want substring %q", err.Error(), tt.wantErr)
			}
		})
	}
}
