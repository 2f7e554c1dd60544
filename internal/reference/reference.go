// Package reference parses free-form resource identifiers such as
// "owner/name" or "owner/name:subpath" into model.Reference values.
package reference

import (
	"fmt"
	"path"
	"strings"

	"github.com/klauern/kagglesync/internal/model"
)

// ParseError reports a malformed resource reference.
type ParseError struct {
	// Input is the offending reference text
	Input string
	// Index is the position within a list, or -1 for a single reference
	Index int
	// Message describes the failure
	Message string
}

// Error returns a formatted parse error message.
func (e *ParseError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid reference %q (entry %d): %s", e.Input, e.Index+1, e.Message)
	}
	return fmt.Sprintf("invalid reference %q: %s", e.Input, e.Message)
}

// Parse parses "owner/name" or "owner/name:subpath". The string is split on
// the first ':' and then the first '/'; the name may not contain '/'. The
// subpath must be relative and must not contain ".." segments.
func Parse(s string) (model.Reference, error) {
	input := strings.TrimSpace(s)
	fail := func(msg string) (model.Reference, error) {
		return model.Reference{}, &ParseError{Input: input, Index: -1, Message: msg}
	}

	refPart, subpath, hasSubpath := strings.Cut(input, ":")
	owner, name, found := strings.Cut(strings.TrimSpace(refPart), "/")
	if !found {
		return fail("expected <owner>/<name>")
	}
	owner = strings.TrimSpace(owner)
	name = strings.TrimSpace(name)
	if owner == "" {
		return fail("owner is empty")
	}
	if name == "" {
		return fail("name is empty")
	}
	if strings.Contains(name, "/") {
		return fail("name must not contain '/'")
	}
	if isDotSegment(owner) {
		return fail("owner must not be '.' or '..'")
	}
	if isDotSegment(name) {
		return fail("name must not be '.' or '..'")
	}

	ref := model.Reference{Owner: owner, Name: name}
	if hasSubpath {
		clean, err := cleanSubpath(subpath)
		if err != nil {
			return fail(err.Error())
		}
		ref.Subpath = clean
	}
	return ref, nil
}

// ParseList parses a comma-separated list of references. Empty entries are
// skipped; order and duplicates are preserved.
func ParseList(s string) ([]model.Reference, error) {
	var refs []model.Reference
	for i, entry := range strings.Split(s, ",") {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		ref, err := Parse(entry)
		if err != nil {
			if perr, ok := err.(*ParseError); ok {
				perr.Index = i
			}
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// ParseKernel parses a kernel id "owner/slug" or a bare "slug", in which case
// the owner defaults to defaultOwner.
func ParseKernel(s, defaultOwner string) (model.Reference, error) {
	input := strings.TrimSpace(s)
	if input == "" {
		return model.Reference{}, &ParseError{Input: s, Index: -1, Message: "kernel reference is empty"}
	}
	if !strings.Contains(input, "/") {
		owner := strings.TrimSpace(defaultOwner)
		if owner == "" {
			return model.Reference{}, &ParseError{Input: input, Index: -1, Message: "no owner given and no default owner configured"}
		}
		if isDotSegment(input) {
			return model.Reference{}, &ParseError{Input: input, Index: -1, Message: "slug must not be '.' or '..'"}
		}
		return model.Reference{Owner: owner, Name: input}, nil
	}
	ref, err := Parse(input)
	if err != nil {
		return model.Reference{}, err
	}
	if ref.HasSubpath() {
		return model.Reference{}, &ParseError{Input: input, Index: -1, Message: "kernel references do not take a subpath"}
	}
	return ref, nil
}

func cleanSubpath(raw string) (string, error) {
	sub := strings.TrimSpace(raw)
	if sub == "" {
		return "", fmt.Errorf("subpath is empty")
	}
	sub = strings.ReplaceAll(sub, "\\", "/")
	if strings.HasPrefix(sub, "/") {
		return "", fmt.Errorf("subpath must be relative")
	}
	for _, seg := range strings.Split(sub, "/") {
		if seg == ".." {
			return "", fmt.Errorf("subpath must not contain '..'")
		}
	}
	clean := path.Clean(sub)
	if clean == "." {
		return "", fmt.Errorf("subpath is empty")
	}
	return clean, nil
}

// isDotSegment reports whether s would name the current or parent directory
// once joined into a path.
func isDotSegment(s string) bool {
	return s == "." || s == ".."
}
