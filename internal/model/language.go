package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Language represents a kernel language supported by the platform
type Language string

const (
	Python Language = "python"
	R      Language = "r"
	Julia  Language = "julia"
)

// IsValid returns true if the language is recognized
func (l Language) IsValid() bool {
	switch l {
	case Python, R, Julia:
		return true
	default:
		return false
	}
}

// AllLanguages returns all supported kernel languages
func AllLanguages() []Language {
	return []Language{Python, R, Julia}
}

// ParseLanguage parses a language name case-insensitively
func ParseLanguage(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("unknown kernel language: %q", s)
	}
	return l, nil
}

// KernelType is either a notebook or a plain script.
type KernelType string

const (
	KernelNotebook KernelType = "notebook"
	KernelScript   KernelType = "script"
)

var notebookExtensions = map[Language]string{
	Python: ".ipynb",
	R:      ".irnb",
	Julia:  ".ijlnb",
}

var scriptExtensions = map[Language]string{
	Python: ".py",
	R:      ".r",
	Julia:  ".jl",
}

// Extension returns the local file extension for a kernel of the given
// language and type. Unknown languages fall back to Python.
func Extension(l Language, kt KernelType) string {
	table := notebookExtensions
	if kt == KernelScript {
		table = scriptExtensions
	}
	if ext, ok := table[l]; ok {
		return ext
	}
	return table[Python]
}

// DetectKernelFile infers language and kernel type from a code file name.
// The boolean is false when the extension is not recognized.
func DetectKernelFile(path string) (Language, KernelType, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, l := range AllLanguages() {
		if notebookExtensions[l] == ext {
			return l, KernelNotebook, true
		}
		if scriptExtensions[l] == ext {
			return l, KernelScript, true
		}
	}
	return "", "", false
}
