// Package config resolves kagglesync settings from layered sources: built-in
// defaults, the process environment, a shared env file, a private credentials
// file and explicit overrides.
package config

// Key is a recognized configuration key. Keys use the env-file spelling.
type Key string

const (
	// KeyCompetition is the competition identifier.
	KeyCompetition Key = "KAGGLE_COMPETITION"
	// KeyDownloadDir is the default download (input) root.
	KeyDownloadDir Key = "KAGGLE_DOWNLOAD_DIR"
	// KeyInputDatasets is a comma-separated list of dataset references.
	KeyInputDatasets Key = "KAGGLE_INPUT_DATASETS"
	// KeyNotebookOwner is the account whose notebooks are mirrored.
	KeyNotebookOwner Key = "KAGGLE_NOTEBOOK_OWNER"
	// KeyNotebookDir is the local working root notebooks are mirrored into.
	KeyNotebookDir Key = "KAGGLE_NOTEBOOK_DIR"
	// KeyUsername is the credential username.
	KeyUsername Key = "KAGGLE_USERNAME"
	// KeyKey is the credential API key.
	KeyKey Key = "KAGGLE_KEY"
)

// Built-in defaults.
const (
	DefaultConfigPath  = "config/kaggle.env"
	DefaultSecretsPath = "config/kaggle.credentials.env"
	DefaultDownloadDir = "data/input"
	DefaultNotebookDir = "dev"
)

// AllKeys returns every recognized key in display order.
func AllKeys() []Key {
	return []Key{
		KeyCompetition,
		KeyDownloadDir,
		KeyInputDatasets,
		KeyNotebookOwner,
		KeyNotebookDir,
		KeyUsername,
		KeyKey,
	}
}

// IsValid returns true if the key is recognized
func (k Key) IsValid() bool {
	for _, known := range AllKeys() {
		if k == known {
			return true
		}
	}
	return false
}

// IsSecret reports whether the key's value must never be displayed.
func (k Key) IsSecret() bool {
	return k == KeyKey
}

// String returns the env-file name of the key.
func (k Key) String() string {
	return string(k)
}

// Defaults returns the built-in default values. Keys without a sensible
// default are absent.
func Defaults() map[Key]string {
	return map[Key]string{
		KeyDownloadDir: DefaultDownloadDir,
		KeyNotebookDir: DefaultNotebookDir,
	}
}

// Source names the layer a setting was resolved from.
type Source string

const (
	SourceDefault     Source = "default"
	SourceEnvironment Source = "environment"
	SourceConfigFile  Source = "config"
	SourceSecretsFile Source = "secrets"
	SourceOverride    Source = "override"
)
