package config

import "strings"

// Settings is the resolved, immutable view of every configuration layer for
// one invocation. A key no layer provided is unset, which is distinct from a
// key explicitly set to the empty string.
type Settings struct {
	values  map[Key]string
	sources map[Key]Source
}

func newSettings() *Settings {
	return &Settings{
		values:  make(map[Key]string),
		sources: make(map[Key]Source),
	}
}

func (s *Settings) set(k Key, v string, src Source) {
	s.values[k] = v
	s.sources[k] = src
}

// Get returns the value for k and whether any layer set it.
func (s *Settings) Get(k Key) (string, bool) {
	v, ok := s.values[k]
	return v, ok
}

// Value returns the value for k, or "" when unset.
func (s *Settings) Value(k Key) string {
	return s.values[k]
}

// IsSet reports whether any layer provided k.
func (s *Settings) IsSet(k Key) bool {
	_, ok := s.values[k]
	return ok
}

// Source returns the layer k was resolved from, or "" when unset.
func (s *Settings) Source(k Key) Source {
	return s.sources[k]
}

// Keys returns the set keys in display order.
func (s *Settings) Keys() []Key {
	keys := make([]Key, 0, len(s.values))
	for _, k := range AllKeys() {
		if s.IsSet(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Require returns an *Error listing every key in keys that is unset or empty.
func (s *Settings) Require(keys ...Key) error {
	var missing []Key
	for _, k := range keys {
		if v, ok := s.values[k]; !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &Error{Keys: missing, Message: "missing required keys"}
}

// Credentials returns the username and API key, failing when either is missing.
func (s *Settings) Credentials() (username, key string, err error) {
	if err := s.Require(KeyUsername, KeyKey); err != nil {
		return "", "", err
	}
	return s.values[KeyUsername], s.values[KeyKey], nil
}

// NotebookOwner returns the configured notebook owner, falling back to the
// credential username.
func (s *Settings) NotebookOwner() string {
	if v := strings.TrimSpace(s.values[KeyNotebookOwner]); v != "" {
		return v
	}
	return s.values[KeyUsername]
}

// Redacted returns every set key with secret values masked, for display.
func (s *Settings) Redacted() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		if k.IsSecret() && v != "" {
			v = mask(v)
		}
		out[string(k)] = v
	}
	return out
}

func mask(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}
