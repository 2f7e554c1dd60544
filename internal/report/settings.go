package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/klauern/kagglesync/internal/config"
)

type settingRow struct {
	Key    string `json:"key" yaml:"key" toml:"key"`
	Value  string `json:"value" yaml:"value" toml:"value"`
	Source string `json:"source" yaml:"source" toml:"source"`
}

// Settings writes the resolved settings in format f with secrets masked.
// The env format is itself a valid config file; the others record which
// layer supplied each value.
func Settings(w io.Writer, s *config.Settings, f Format) error {
	redacted := s.Redacted()
	rows := make([]settingRow, 0, len(redacted))
	for _, k := range s.Keys() {
		rows = append(rows, settingRow{
			Key:    string(k),
			Value:  redacted[string(k)],
			Source: string(s.Source(k)),
		})
	}

	switch f {
	case FormatEnv:
		var sb strings.Builder
		for _, r := range rows {
			sb.WriteString(fmt.Sprintf("# source: %s\n%s=%s\n", r.Source, r.Key, envQuote(r.Value)))
		}
		_, err := io.WriteString(w, sb.String())
		return err
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatYAML:
		return writeYAML(w, rows)
	case FormatTOML:
		return toml.NewEncoder(w).Encode(struct {
			Settings []settingRow `toml:"settings"`
		}{Settings: rows})
	default:
		return fmt.Errorf("unsupported format: %s", f)
	}
}

func envQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t#\"'") {
		return v
	}
	if !strings.Contains(v, `"`) {
		return `"` + v + `"`
	}
	return "'" + v + "'"
}
