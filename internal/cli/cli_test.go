package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/klauern/kagglesync/internal/config"
	"github.com/klauern/kagglesync/internal/logging"
	"github.com/klauern/kagglesync/internal/model"
	"github.com/klauern/kagglesync/internal/remote"
	"github.com/klauern/kagglesync/internal/remote/kaggle"
	"github.com/klauern/kagglesync/internal/remote/mock"
	"github.com/klauern/kagglesync/internal/ui"
	"github.com/klauern/kagglesync/internal/util"
)

// runCLI runs the application with args and returns what it printed to
// stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	runErr := Run(context.Background(), append([]string{"kagglesync", "--no-color"}, args...))

	if err := w.Close(); err != nil {
		t.Fatalf("failed to close pipe writer: %v", err)
	}
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("failed to read captured output: %v", err)
	}
	return buf.String(), runErr
}

// useClient makes commands talk to client as the given identity.
func useClient(t *testing.T, client remote.Client, identity string) {
	t.Helper()
	old := newClient
	newClient = func(*config.Settings, ...kaggle.Option) (remote.Client, string, error) {
		return client, identity, nil
	}
	t.Cleanup(func() { newClient = old })
}

func TestVersionVariables(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if Commit == "" {
		t.Error("Commit should not be empty")
	}
	if BuildDate == "" {
		t.Error("BuildDate should not be empty")
	}
}

func TestConfigureLogging(t *testing.T) {
	tests := map[string]struct {
		args      []string
		wantInfo  bool
		wantDebug bool
	}{
		"no flags logs warnings only": {
			args: []string{"version"},
		},
		"verbose flag enables info level": {
			args:     []string{"--verbose", "version"},
			wantInfo: true,
		},
		"debug flag enables debug level": {
			args:      []string{"--debug", "version"},
			wantInfo:  true,
			wantDebug: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			oldStderr := os.Stderr
			r, w, _ := os.Pipe()
			os.Stderr = w

			logging.SetDefault(logging.New(logging.DefaultOptions()))

			_, err := runCLI(t, tt.args...)

			if err := w.Close(); err != nil {
				t.Fatalf("failed to close pipe writer: %v", err)
			}
			os.Stderr = oldStderr
			if _, err := io.Copy(io.Discard, r); err != nil {
				t.Fatalf("failed to drain stderr: %v", err)
			}

			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			logger := slog.Default()
			if got := logger.Enabled(context.Background(), slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := logger.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

type downloadRow struct {
	Kind   string `json:"kind"`
	Ref    string `json:"ref"`
	Action string `json:"action"`
	Error  string `json:"error"`
}

func decodeDownloads(t *testing.T, out string) []downloadRow {
	t.Helper()
	var rows []downloadRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("failed to decode output %q: %v", out, err)
	}
	return rows
}

func TestDownloadCommand(t *testing.T) {
	root := t.TempDir()
	client := mock.New().
		WithArchive("titanic", "train.csv", []byte("id,survived\n")).
		WithArchive("acme/weather", "weather.csv", []byte("day,temp\n"))
	useClient(t, client, "alice")

	args := []string{
		"--competition", "titanic",
		"--datasets", "acme/weather",
		"--download-dir", root,
		"download", "--format", "json",
	}

	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	rows := decodeDownloads(t, out)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %q", len(rows), out)
	}
	for _, r := range rows {
		if r.Action != "downloaded" {
			t.Errorf("%s: action = %q, want downloaded", r.Ref, r.Action)
		}
	}
	for _, p := range []string{
		filepath.Join(root, "titanic", "train.csv"),
		filepath.Join(root, "acme", "weather", "weather.csv"),
	} {
		if !util.FileExists(p) {
			t.Errorf("expected %s to exist", p)
		}
	}

	// A second run leaves populated directories alone.
	out, err = runCLI(t, args...)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	for _, r := range decodeDownloads(t, out) {
		if r.Action != "skipped" {
			t.Errorf("%s: action = %q, want skipped", r.Ref, r.Action)
		}
	}
	if got := client.FetchCalls("titanic"); got != 1 {
		t.Errorf("FetchCalls(titanic) = %d, want 1", got)
	}

	// --force fetches again.
	if _, err := runCLI(t, append(args, "--force")...); err != nil {
		t.Fatalf("forced Run() error = %v", err)
	}
	if got := client.FetchCalls("titanic"); got != 2 {
		t.Errorf("FetchCalls(titanic) after --force = %d, want 2", got)
	}
}

func TestDownloadCommand_DestinationAppliesToCompetition(t *testing.T) {
	root := t.TempDir()
	compDir := filepath.Join(t.TempDir(), "comp")
	client := mock.New().
		WithArchive("titanic", "train.csv", []byte("id,survived\n")).
		WithArchive("acme/weather", "weather.csv", []byte("day,temp\n"))
	useClient(t, client, "alice")

	_, err := runCLI(t,
		"--competition", "titanic",
		"--datasets", "acme/weather",
		"--download-dir", root,
		"download", "--destination", compDir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, p := range []string{
		filepath.Join(compDir, "train.csv"),
		filepath.Join(root, "acme", "weather", "weather.csv"),
	} {
		if !util.FileExists(p) {
			t.Errorf("expected %s to exist", p)
		}
	}
	if util.FileExists(filepath.Join(compDir, "acme")) {
		t.Error("datasets must stay under the download directory")
	}

	for _, f := range downloadCommand().Flags {
		if sf, ok := f.(*cli.StringFlag); ok && sf.Name == "destination" {
			if !strings.Contains(sf.Usage, "Competition directory") {
				t.Errorf("--destination usage = %q, want it to describe the competition directory", sf.Usage)
			}
		}
	}
}

func TestDownloadCommand_PartialFailure(t *testing.T) {
	root := t.TempDir()
	client := mock.New().
		WithArchive("acme/good", "good.csv", []byte("a\n")).
		WithArchiveError("acme/bad", remote.ErrNotFound)
	useClient(t, client, "alice")

	out, err := runCLI(t,
		"--datasets", "acme/bad,acme/good",
		"--download-dir", root,
		"download", "--skip-competition")
	if err == nil {
		t.Fatal("expected an error when a target fails")
	}
	if !strings.Contains(err.Error(), "1 of 2 target(s) failed") {
		t.Errorf("error = %q, want failure count", err)
	}
	if !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("expected error to wrap ErrNotFound, got %v", err)
	}
	if !strings.Contains(out, ui.SymbolSuccess+" dataset") {
		t.Errorf("expected the good dataset to be reported, got %q", out)
	}
	if !util.FileExists(filepath.Join(root, "acme", "good", "good.csv")) {
		t.Error("expected the good dataset to be downloaded")
	}
}

func TestDownloadCommand_Errors(t *testing.T) {
	useClient(t, mock.New(), "alice")

	tests := map[string]struct {
		args    []string
		wantErr string
	}{
		"missing competition": {
			args:    []string{"download"},
			wantErr: string(config.KeyCompetition),
		},
		"malformed dataset": {
			args:    []string{"--datasets", "not-a-ref", "download", "--skip-competition"},
			wantErr: string(config.KeyInputDatasets),
		},
		"bad format": {
			args:    []string{"--competition", "titanic", "download", "--format", "toml"},
			wantErr: "unsupported format",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestDownloadCommand_NothingToDownload(t *testing.T) {
	useClient(t, mock.New(), "alice")

	out, err := runCLI(t, "download", "--skip-competition")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out, "Nothing to download") {
		t.Errorf("output = %q, want 'Nothing to download'", out)
	}
}

func notebookClient() *mock.Client {
	return mock.New().
		WithKernels(
			model.NotebookDescriptor{Owner: "alice", Slug: "eda", Language: model.Python},
			model.NotebookDescriptor{Owner: "alice", Slug: "exp001", Language: model.Python},
		).
		WithKernelFiles("alice/eda", model.NotebookFile{Path: "eda.ipynb", Data: []byte("{}")}).
		WithKernelFiles("alice/exp001", model.NotebookFile{Path: "exp001.ipynb", Data: []byte("{}")})
}

func TestNotebooksPullCommand(t *testing.T) {
	tests := map[string]struct {
		args      []string
		wantFiles []string
		wantOut   string
	}{
		"all kernels": {
			args:      []string{"--owner", "alice", "notebooks", "pull"},
			wantFiles: []string{"eda/eda.ipynb", "exp001/exp001.ipynb"},
			wantOut:   "Mirrored 2 kernel(s)",
		},
		"single kernel": {
			args:      []string{"notebooks", "pull", "--kernel", "alice/eda"},
			wantFiles: []string{"eda/eda.ipynb"},
			wantOut:   "eda.ipynb (created)",
		},
		"bare kernel uses owner": {
			args:      []string{"--owner", "alice", "notebooks", "pull", "--kernel", "exp001"},
			wantFiles: []string{"exp001/exp001.ipynb"},
			wantOut:   "exp001.ipynb (created)",
		},
		"glob match": {
			args:      []string{"--owner", "alice", "nb", "pull", "--match", "exp*"},
			wantFiles: []string{"exp001/exp001.ipynb"},
			wantOut:   "Mirrored 1 kernel(s)",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			useClient(t, notebookClient(), "alice")
			dest := t.TempDir()

			out, err := runCLI(t, append(tt.args, "--destination", dest)...)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			for _, f := range tt.wantFiles {
				if !util.FileExists(filepath.Join(dest, filepath.FromSlash(f))) {
					t.Errorf("expected %s to exist", f)
				}
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("output = %q, want substring %q", out, tt.wantOut)
			}
		})
	}
}

func TestNotebooksPullCommand_Overwrite(t *testing.T) {
	useClient(t, notebookClient(), "alice")
	dest := t.TempDir()
	local := filepath.Join(dest, "eda", "eda.ipynb")
	if err := os.MkdirAll(filepath.Dir(local), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(local, []byte("local edits"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "notebooks", "pull", "--kernel", "alice/eda", "--destination", dest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out, "(skipped)") {
		t.Errorf("output = %q, want skipped", out)
	}
	if data, _ := os.ReadFile(local); string(data) != "local edits" {
		t.Errorf("local file changed without --overwrite: %q", data)
	}

	out, err = runCLI(t, "notebooks", "pull", "--kernel", "alice/eda", "--destination", dest, "--overwrite")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out, "(updated)") {
		t.Errorf("output = %q, want updated", out)
	}
	if data, _ := os.ReadFile(local); string(data) != "{}" {
		t.Errorf("local file = %q, want remote content", data)
	}
}

func TestNotebooksPullCommand_DefaultsToNotebookDir(t *testing.T) {
	dest := t.TempDir()
	client := mock.New().
		WithKernels(model.NotebookDescriptor{Owner: "bob", Slug: "eda"}).
		WithKernelFiles("bob/eda", model.NotebookFile{Path: "eda.ipynb", Data: []byte("{}")})
	useClient(t, client, "alice")

	if _, err := runCLI(t, "--owner", "bob", "--notebook-dir", dest, "notebooks", "pull", "--include-private"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !util.FileExists(filepath.Join(dest, "eda", "eda.ipynb")) {
		t.Error("expected notebook under --notebook-dir")
	}
	owner, private := client.LastList()
	if owner != "bob" || private {
		t.Errorf("LastList() = (%q, %v), want (bob, false)", owner, private)
	}
}

func TestNotebooksPullCommand_Errors(t *testing.T) {
	client := mock.New().
		WithKernels(model.NotebookDescriptor{Owner: "alice", Slug: "eda"}).
		WithKernelFilesError("alice/eda", remote.ErrUnauthorized)
	useClient(t, client, "alice")
	dest := t.TempDir()

	tests := map[string]struct {
		args    []string
		wantErr string
	}{
		"fetch failure": {
			args:    []string{"--owner", "alice", "notebooks", "pull", "--destination", dest},
			wantErr: "1 of 1 file(s) failed",
		},
		"missing kernel": {
			args:    []string{"notebooks", "pull", "--kernel", "alice/nope", "--destination", dest},
			wantErr: "kernel alice/nope not found",
		},
		"interactive with kernel": {
			args:    []string{"notebooks", "pull", "--interactive", "--kernel", "alice/eda"},
			wantErr: "cannot use both",
		},
		"invalid match": {
			args:    []string{"--owner", "alice", "notebooks", "pull", "--match", "exp[", "--destination", dest},
			wantErr: "exp[",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func writeNotebook(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(`{"cells": []}`), 0o600); err != nil {
		t.Fatalf("failed to write notebook: %v", err)
	}
	return path
}

func TestPushCommand_DryRun(t *testing.T) {
	client := mock.New()
	useClient(t, client, "alice")
	nb := writeNotebook(t, "exp_001.ipynb")

	out, err := runCLI(t, "--username", "alice", "--competition", "titanic",
		"push", "--notebook", nb, "--dataset", "acme/weather", "--dry-run")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	jsonStart := strings.Index(out, "{")
	if jsonStart < 0 {
		t.Fatalf("expected metadata in output, got %q", out)
	}
	var meta model.KernelMetadata
	if err := json.Unmarshal([]byte(out[jsonStart:]), &meta); err != nil {
		t.Fatalf("failed to decode metadata: %v", err)
	}
	if meta.ID != "alice/exp-001" {
		t.Errorf("ID = %q, want alice/exp-001", meta.ID)
	}
	if meta.Title != "Exp 001" {
		t.Errorf("Title = %q, want 'Exp 001'", meta.Title)
	}
	if len(meta.CompetitionSources) != 1 || meta.CompetitionSources[0] != "titanic" {
		t.Errorf("CompetitionSources = %v, want [titanic]", meta.CompetitionSources)
	}
	if len(meta.DatasetSources) != 1 || meta.DatasetSources[0] != "acme/weather" {
		t.Errorf("DatasetSources = %v, want [acme/weather]", meta.DatasetSources)
	}
	if len(client.Pushed()) != 0 {
		t.Error("dry run should not push")
	}
}

func TestPushCommand(t *testing.T) {
	client := mock.New()
	useClient(t, client, "alice")
	nb := writeNotebook(t, "baseline.ipynb")

	out, err := runCLI(t, "push", "--notebook", nb, "--slug", "exp002", "--enable-gpu", "--competition", "titanic")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out, "Kernel push complete. Track execution at https://www.kaggle.com/code/alice/exp002") {
		t.Errorf("unexpected output %q", out)
	}

	pushed := client.Pushed()
	if len(pushed) != 1 {
		t.Fatalf("expected 1 push, got %d", len(pushed))
	}
	meta := pushed[0].Metadata
	if meta.ID != "alice/exp002" || !meta.EnableGPU {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Title != "Exp002" {
		t.Errorf("Title = %q, want reconciled 'Exp002'", meta.Title)
	}
	if _, ok := pushed[0].Files["kernel-metadata.json"]; !ok {
		t.Error("expected kernel-metadata.json in push directory")
	}
}

func TestPushCommand_Errors(t *testing.T) {
	useClient(t, mock.New().WithPushError(remote.ErrUnauthorized), "alice")

	tests := map[string]struct {
		args    []string
		wantErr string
	}{
		"missing notebook flag": {
			args:    []string{"push"},
			wantErr: "notebook",
		},
		"notebook does not exist": {
			args:    []string{"push", "--notebook", filepath.Join(t.TempDir(), "missing.ipynb")},
			wantErr: "missing.ipynb",
		},
		"push rejected": {
			args:    []string{"push", "--notebook", writeNotebook(t, "exp.ipynb")},
			wantErr: "unauthorized",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigShowCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "kaggle.env")
	secretsPath := filepath.Join(dir, "kaggle.credentials.env")
	if err := os.WriteFile(cfgPath, []byte("KAGGLE_COMPETITION=titanic\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(secretsPath, []byte("KAGGLE_USERNAME=alice\nKAGGLE_KEY=0123456789abcdef\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(string(config.KeyNotebookOwner), "bob")

	base := []string{"--config", cfgPath, "--secrets", secretsPath, "--download-dir", "/data"}

	tests := map[string]struct {
		format string
		want   []string
	}{
		"env": {
			format: "env",
			want: []string{
				"KAGGLE_COMPETITION=titanic",
				"KAGGLE_NOTEBOOK_OWNER=bob",
				"# source: override",
				"KAGGLE_DOWNLOAD_DIR=/data",
				"KAGGLE_KEY=************cdef",
			},
		},
		"json": {
			format: "json",
			want:   []string{`"key": "KAGGLE_USERNAME"`, `"value": "alice"`},
		},
		"toml": {
			format: "toml",
			want:   []string{"[[settings]]", `key = "KAGGLE_COMPETITION"`},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			out, err := runCLI(t, append(base, "config", "show", "--format", tt.format)...)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output = %q, want substring %q", out, want)
				}
			}
			if strings.Contains(out, "0123456789abcdef") {
				t.Error("output must not contain the raw API key")
			}
		})
	}
}

func TestConfigShowCommand_MissingExplicitFile(t *testing.T) {
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "nope.env"), "config", "show")
	if err == nil {
		t.Fatal("expected error for an explicit config file that does not exist")
	}
}
