package model

// KernelMetadata is the descriptor the platform requires alongside a pushed
// kernel. It serializes to kernel-metadata.json.
type KernelMetadata struct {
	ID                 string     `json:"id" yaml:"id"`
	Title              string     `json:"title" yaml:"title"`
	CodeFile           string     `json:"code_file" yaml:"code_file"`
	Language           Language   `json:"language" yaml:"language"`
	KernelType         KernelType `json:"kernel_type" yaml:"kernel_type"`
	IsPrivate          bool       `json:"is_private" yaml:"is_private"`
	EnableGPU          bool       `json:"enable_gpu" yaml:"enable_gpu"`
	EnableTPU          bool       `json:"enable_tpu" yaml:"enable_tpu"`
	EnableInternet     bool       `json:"enable_internet" yaml:"enable_internet"`
	Keywords           []string   `json:"keywords" yaml:"keywords"`
	DatasetSources     []string   `json:"dataset_sources" yaml:"dataset_sources"`
	CompetitionSources []string   `json:"competition_sources" yaml:"competition_sources"`
	KernelSources      []string   `json:"kernel_sources" yaml:"kernel_sources"`
	ModelSources       []string   `json:"model_sources" yaml:"model_sources"`
}

// Slug returns the slug segment of the kernel id.
func (m KernelMetadata) Slug() string {
	for i := len(m.ID) - 1; i >= 0; i-- {
		if m.ID[i] == '/' {
			return m.ID[i+1:]
		}
	}
	return m.ID
}
