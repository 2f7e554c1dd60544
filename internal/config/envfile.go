package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadFile parses a KEY=VALUE file. A file that cannot be opened or read is
// reported as *Error naming the path.
func ReadFile(path string) (map[string]string, error) {
	// #nosec G304 - path is provided by the operator
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Path: path, Message: "cannot read file", Err: err}
	}
	defer f.Close()

	values, err := Parse(f)
	if err != nil {
		if cerr, ok := err.(*Error); ok {
			cerr.Path = path
			return nil, cerr
		}
		return nil, &Error{Path: path, Message: "cannot read file", Err: err}
	}
	return values, nil
}

// Parse reads flat KEY=VALUE lines. Blank lines and lines starting with # are
// ignored, an "export " prefix is tolerated and matching surrounding quotes
// are removed. Values are taken literally; nothing is expanded. When a key
// repeats, the last line wins.
func Parse(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, &Error{Line: lineNo, Message: fmt.Sprintf("malformed entry %q, expected KEY=VALUE", line)}
		}
		values[key] = parseValue(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// parseValue strips matching quotes, or a trailing " #" comment on unquoted
// values.
func parseValue(v string) string {
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' || first == '\'') && first == last {
			return v[1 : len(v)-1]
		}
	}
	if i := strings.Index(v, " #"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v
}
