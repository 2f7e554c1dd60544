package config

import (
	"github.com/klauern/kagglesync/internal/logging"
)

// Sources lists the layers to merge. Empty paths skip the corresponding file
// layer; a nil LookupEnv skips the environment layer.
type Sources struct {
	// ConfigPath is the shared settings file
	ConfigPath string
	// SecretsPath is the private credentials file
	SecretsPath string
	// Overrides are explicit values, typically from command flags
	Overrides map[Key]string
	// LookupEnv reads the process environment (os.LookupEnv in production)
	LookupEnv func(string) (string, bool)
}

// Resolve merges the layers into one Settings value. Precedence from highest
// to lowest: overrides, credentials file, shared config file, environment,
// built-in defaults. Unrecognized keys are ignored.
func Resolve(src Sources) (*Settings, error) {
	s := newSettings()

	for k, v := range Defaults() {
		s.set(k, v, SourceDefault)
	}

	if src.LookupEnv != nil {
		for _, k := range AllKeys() {
			if v, ok := src.LookupEnv(string(k)); ok && v != "" {
				s.set(k, v, SourceEnvironment)
			}
		}
	}

	files := []struct {
		path   string
		source Source
	}{
		{path: src.ConfigPath, source: SourceConfigFile},
		{path: src.SecretsPath, source: SourceSecretsFile},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		values, err := ReadFile(f.path)
		if err != nil {
			return nil, err
		}
		for name, v := range values {
			k := Key(name)
			if !k.IsValid() {
				logging.Debug("ignoring unrecognized config key", logging.Path(f.path), "key", name)
				continue
			}
			s.set(k, v, f.source)
		}
		logging.Debug("loaded config file", logging.Path(f.path), logging.Count(len(values)))
	}

	for k, v := range src.Overrides {
		if !k.IsValid() {
			continue
		}
		s.set(k, v, SourceOverride)
	}

	return s, nil
}
