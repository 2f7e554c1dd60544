// Package e2e provides testing infrastructure for end-to-end CLI tests.
// A Harness runs kagglesync in-process from an isolated working directory,
// with the Kaggle API replaced by a FakeKaggle server.
package e2e

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauern/kagglesync/internal/cli"
	"github.com/klauern/kagglesync/internal/config"
)

// Result contains the outcome of running a CLI command.
type Result struct {
	// Stdout contains the captured standard output.
	Stdout string
	// Stderr contains the captured standard error (logs and warnings).
	Stderr string
	// Err is the error returned by the CLI command, if any.
	Err error
	// ExitCode is the inferred exit code (0 for success, 1 for error).
	ExitCode int
}

// Success returns true if the command completed without error.
func (r *Result) Success() bool {
	return r.Err == nil
}

// Harness provides a test harness for running E2E CLI tests.
// It manages environment isolation, the working directory, and output capture.
type Harness struct {
	t       *testing.T
	homeDir string
	workDir string
	api     *FakeKaggle
}

// NewHarness creates a new E2E test harness. The process changes into a
// fresh working directory for the rest of the test, so the default
// config/kaggle.env paths resolve inside it. KAGGLE_* variables from the
// caller's environment are blanked.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	h := &Harness{
		t:       t,
		homeDir: t.TempDir(),
		workDir: t.TempDir(),
		api:     NewFakeKaggle(t, "alice", "0123456789abcdef"),
	}

	t.Setenv("HOME", h.homeDir)
	for _, k := range config.AllKeys() {
		// Empty environment values are ignored by the resolver.
		t.Setenv(string(k), "")
	}
	t.Setenv("KAGGLESYNC_API_URL", h.api.URL())
	t.Chdir(h.workDir)

	return h
}

// SetEnv sets an environment variable for CLI commands run through this harness.
// The environment will be restored after the test completes.
func (h *Harness) SetEnv(key, value string) {
	h.t.Helper()
	h.t.Setenv(key, value)
}

// HomeDir returns the isolated home directory for this test harness.
func (h *Harness) HomeDir() string {
	return h.homeDir
}

// API returns the fake Kaggle server commands talk to.
func (h *Harness) API() *FakeKaggle {
	return h.api
}

// Work returns a fixture rooted at the working directory.
func (h *Harness) Work() *Fixture {
	return NewFixture(h.t, h.workDir)
}

// WriteConfig writes the shared settings file at its default location.
func (h *Harness) WriteConfig(values map[config.Key]string) string {
	h.t.Helper()
	return h.Work().WriteFile(config.DefaultConfigPath, envFile(values))
}

// WriteSecrets writes the credentials file at its default location.
func (h *Harness) WriteSecrets(values map[config.Key]string) string {
	h.t.Helper()
	return h.Work().WriteFile(config.DefaultSecretsPath, envFile(values))
}

// WriteCredentials writes the credentials the fake server accepts.
func (h *Harness) WriteCredentials() string {
	h.t.Helper()
	return h.WriteSecrets(map[config.Key]string{
		config.KeyUsername: h.api.Username(),
		config.KeyKey:      h.api.Key(),
	})
}

func envFile(values map[config.Key]string) string {
	lines := make([]string, 0, len(values))
	for k, v := range values {
		lines = append(lines, string(k)+"="+v)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}

// Path returns the absolute path of relPath inside the working directory.
func (h *Harness) Path(relPath string) string {
	return filepath.Join(h.workDir, filepath.FromSlash(relPath))
}

// Run executes a CLI command with the given arguments and captures the output.
func (h *Harness) Run(args ...string) *Result {
	h.t.Helper()
	return h.run(nil, args)
}

// RunWithStdin executes a CLI command with stdin input and captures output.
// This is useful for testing commands that read from stdin.
func (h *Harness) RunWithStdin(stdin string, args ...string) *Result {
	h.t.Helper()
	return h.run(strings.NewReader(stdin), args)
}

func (h *Harness) run(stdin io.Reader, args []string) *Result {
	h.t.Helper()

	// Prepend "kagglesync" as the program name if not provided
	if len(args) == 0 || args[0] != "kagglesync" {
		args = append([]string{"kagglesync"}, args...)
	}

	if stdin != nil {
		oldStdin := os.Stdin
		stdinR, stdinW, err := os.Pipe()
		if err != nil {
			h.t.Fatalf("failed to create stdin pipe: %v", err)
		}
		go func() {
			defer func() {
				_ = stdinW.Close()
			}()
			_, _ = io.Copy(stdinW, stdin)
		}()
		os.Stdin = stdinR
		defer func() {
			os.Stdin = oldStdin
			_ = stdinR.Close()
		}()
	}

	stdout := h.capture(&os.Stdout)
	stderr := h.capture(&os.Stderr)

	cmdErr := cli.Run(context.Background(), args)

	// Restore before waiting so EOF reaches the readers
	outStr := stdout()
	errStr := stderr()

	exitCode := 0
	if cmdErr != nil {
		exitCode = 1
	}

	return &Result{
		Stdout:   outStr,
		Stderr:   errStr,
		Err:      cmdErr,
		ExitCode: exitCode,
	}
}

// capture redirects *f into a pipe that is drained concurrently, so output
// larger than the pipe buffer cannot block the command. The returned func
// restores *f and returns what was written.
func (h *Harness) capture(f **os.File) func() string {
	h.t.Helper()

	old := *f
	r, w, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create pipe: %v", err)
	}
	*f = w

	var buf bytes.Buffer
	var copyErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, copyErr = io.Copy(&buf, r)
	}()

	return func() string {
		if err := w.Close(); err != nil {
			h.t.Fatalf("failed to close pipe writer: %v", err)
		}
		*f = old
		<-done
		_ = r.Close()
		if copyErr != nil {
			h.t.Fatalf("failed to read captured output: %v", copyErr)
		}
		return buf.String()
	}
}
