package model

// NotebookFile is a single file belonging to a remote kernel.
type NotebookFile struct {
	// Path is relative to the kernel's local directory.
	Path string
	Data []byte
}

// NotebookDescriptor describes one remote kernel and, once fetched, its files.
type NotebookDescriptor struct {
	Owner     string         `json:"owner" yaml:"owner"`
	Slug      string         `json:"slug" yaml:"slug"`
	Title     string         `json:"title,omitempty" yaml:"title,omitempty"`
	Language  Language       `json:"language,omitempty" yaml:"language,omitempty"`
	IsPrivate bool           `json:"is_private" yaml:"is_private"`
	Files     []NotebookFile `json:"-" yaml:"-"`
}

// Ref returns the kernel identity in owner/slug form.
func (d NotebookDescriptor) Ref() string {
	return d.Owner + "/" + d.Slug
}

// Reference returns the descriptor's identity as a Reference.
func (d NotebookDescriptor) Reference() Reference {
	return Reference{Owner: d.Owner, Name: d.Slug}
}
