// Package report renders command results for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/klauern/kagglesync/internal/download"
	"github.com/klauern/kagglesync/internal/logging"
	"github.com/klauern/kagglesync/internal/notebook"
	"github.com/klauern/kagglesync/internal/ui"
)

// Format represents an output format.
type Format string

const (
	// FormatTable renders aligned, colored text.
	FormatTable Format = "table"
	// FormatJSON renders JSON.
	FormatJSON Format = "json"
	// FormatYAML renders YAML.
	FormatYAML Format = "yaml"
	// FormatMarkdown renders a Markdown table.
	FormatMarkdown Format = "markdown"
	// FormatEnv renders KEY=VALUE lines (settings only).
	FormatEnv Format = "env"
	// FormatTOML renders TOML (settings only).
	FormatTOML Format = "toml"
)

// ResultFormats are the formats accepted for batch results.
func ResultFormats() []Format {
	return []Format{FormatTable, FormatJSON, FormatYAML, FormatMarkdown}
}

// SettingsFormats are the formats accepted for resolved settings.
func SettingsFormats() []Format {
	return []Format{FormatEnv, FormatJSON, FormatYAML, FormatTOML}
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// ParseFormat parses s and checks it against allowed.
func ParseFormat(s string, allowed []Format) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(s)))
	names := make([]string, len(allowed))
	for i, a := range allowed {
		if a == format {
			return format, nil
		}
		names[i] = string(a)
	}
	return "", fmt.Errorf("unsupported format %q (valid: %s)", s, strings.Join(names, ", "))
}

type downloadRow struct {
	Kind   string   `json:"kind" yaml:"kind"`
	Ref    string   `json:"ref" yaml:"ref"`
	Path   string   `json:"path" yaml:"path"`
	Action string   `json:"action" yaml:"action"`
	Files  []string `json:"files,omitempty" yaml:"files,omitempty"`
	Bytes  int64    `json:"bytes" yaml:"bytes"`
	Error  string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Downloads writes a download batch result in format f.
func Downloads(w io.Writer, res *download.Result, f Format) error {
	rows := make([]downloadRow, len(res.Items))
	for i, it := range res.Items {
		rows[i] = downloadRow{
			Kind:   string(it.Target.Kind),
			Ref:    it.Target.Reference.String(),
			Path:   it.Target.LocalPath,
			Action: string(it.Action),
			Files:  it.Files,
			Bytes:  it.Bytes,
		}
		if it.Err != nil {
			rows[i].Error = it.Err.Error()
		}
	}
	logging.Debug("rendering download report", slog.String("format", string(f)), logging.Count(len(rows)))

	switch f {
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatYAML:
		return writeYAML(w, rows)
	case FormatMarkdown:
		var sb strings.Builder
		sb.WriteString("| Kind | Reference | Path | Action | Size |\n")
		sb.WriteString("|------|-----------|------|--------|------|\n")
		for _, r := range rows {
			sb.WriteString(fmt.Sprintf("| %s | %s | `%s` | %s | %s |\n",
				r.Kind, r.Ref, r.Path, r.Action, humanize.Bytes(uint64(r.Bytes))))
		}
		_, err := io.WriteString(w, sb.String())
		return err
	case FormatTable:
		var sb strings.Builder
		for _, r := range rows {
			label := fmt.Sprintf("%-11s %s -> %s", r.Kind, r.Ref, r.Path)
			sb.WriteString(statusLine(r.Action, label, r.Error, r.Bytes))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		sb.WriteString(res.Summary())
		_, err := io.WriteString(w, sb.String())
		return err
	default:
		return fmt.Errorf("unsupported format: %s", f)
	}
}

type notebookRow struct {
	Kernel string `json:"kernel" yaml:"kernel"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Action string `json:"action" yaml:"action"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Notebooks writes a notebook sync result in format f.
func Notebooks(w io.Writer, res *notebook.Result, f Format) error {
	rows := make([]notebookRow, len(res.Files))
	for i, fr := range res.Files {
		rows[i] = notebookRow{Kernel: fr.Kernel, Path: fr.Path, Action: string(fr.Action)}
		if fr.Err != nil {
			rows[i].Error = fr.Err.Error()
		}
	}
	logging.Debug("rendering notebook report", slog.String("format", string(f)), logging.Count(len(rows)))

	switch f {
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatYAML:
		return writeYAML(w, rows)
	case FormatMarkdown:
		var sb strings.Builder
		sb.WriteString("| Kernel | Path | Action |\n")
		sb.WriteString("|--------|------|--------|\n")
		for _, r := range rows {
			sb.WriteString(fmt.Sprintf("| %s | `%s` | %s |\n", r.Kernel, r.Path, r.Action))
		}
		_, err := io.WriteString(w, sb.String())
		return err
	case FormatTable:
		var sb strings.Builder
		for _, r := range rows {
			label := r.Path
			if label == "" {
				label = r.Kernel
			}
			sb.WriteString(statusLine(r.Action, label, r.Error, 0))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		sb.WriteString(res.Summary())
		_, err := io.WriteString(w, sb.String())
		return err
	default:
		return fmt.Errorf("unsupported format: %s", f)
	}
}

// statusLine renders one result row with a colored status symbol.
func statusLine(action, label, errMsg string, size int64) string {
	msg := fmt.Sprintf("%s %s", label, ui.Dim("("+action+")"))
	switch action {
	case "failed":
		msg = fmt.Sprintf("%s: %s", label, errMsg)
	case "skipped":
	default:
		if size > 0 {
			msg += " " + humanize.Bytes(uint64(size))
		}
	}
	return ui.Status(action, msg)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		_ = encoder.Close()
		return err
	}
	return encoder.Close()
}
