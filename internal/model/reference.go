package model

import "path"

// Reference identifies a remote dataset or kernel by owner and name,
// optionally qualified by a destination subpath.
type Reference struct {
	Owner   string `json:"owner" yaml:"owner"`
	Name    string `json:"name" yaml:"name"`
	Subpath string `json:"subpath,omitempty" yaml:"subpath,omitempty"`
}

// HasSubpath reports whether the reference carries a destination subpath.
func (r Reference) HasSubpath() bool {
	return r.Subpath != ""
}

// Slug returns the owner/name pair without any subpath.
func (r Reference) Slug() string {
	if r.Owner == "" {
		return r.Name
	}
	return path.Join(r.Owner, r.Name)
}

// String renders the reference in owner/name[:subpath] form.
func (r Reference) String() string {
	if r.HasSubpath() {
		return r.Slug() + ":" + r.Subpath
	}
	return r.Slug()
}

// TargetKind distinguishes competition archives from dataset archives.
type TargetKind string

const (
	KindCompetition TargetKind = "competition"
	KindDataset     TargetKind = "dataset"
)

// IsValid returns true if the kind is recognized
func (k TargetKind) IsValid() bool {
	switch k {
	case KindCompetition, KindDataset:
		return true
	default:
		return false
	}
}

// DownloadTarget pairs a remote resource with the local directory it is
// materialized into. Competitions carry only a Name.
type DownloadTarget struct {
	Kind      TargetKind `json:"kind" yaml:"kind"`
	Reference Reference  `json:"reference" yaml:"reference"`
	LocalPath string     `json:"local_path" yaml:"local_path"`
}

// String returns a display label such as "dataset acme/foo".
func (t DownloadTarget) String() string {
	return string(t.Kind) + " " + t.Reference.Slug()
}
