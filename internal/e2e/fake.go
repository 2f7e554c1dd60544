package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeKernel is a kernel served by FakeKaggle.
type FakeKernel struct {
	// Ref is owner/slug
	Ref        string
	Title      string
	Language   string
	KernelType string
	Private    bool
	Source     string
}

// PushRequest is the part of a kernels/push body FakeKaggle records.
type PushRequest struct {
	Slug                   string   `json:"slug"`
	NewTitle               string   `json:"newTitle"`
	Text                   string   `json:"text"`
	Language               string   `json:"language"`
	KernelType             string   `json:"kernelType"`
	IsPrivate              bool     `json:"isPrivate"`
	EnableGPU              bool     `json:"enableGpu"`
	EnableInternet         bool     `json:"enableInternet"`
	DatasetDataSources     []string `json:"datasetDataSources"`
	CompetitionDataSources []string `json:"competitionDataSources"`
}

// FakeKaggle serves the subset of the Kaggle API kagglesync uses. Requests
// must carry the configured basic-auth credentials.
type FakeKaggle struct {
	server   *httptest.Server
	username string
	key      string

	mu           sync.Mutex
	competitions map[string][]byte
	datasets     map[string][]byte
	kernels      []FakeKernel
	pushes       []PushRequest
	hits         map[string]int
}

// NewFakeKaggle starts a server accepting username/key. It is closed when
// the test ends.
func NewFakeKaggle(t *testing.T, username, key string) *FakeKaggle {
	t.Helper()

	f := &FakeKaggle{
		username:     username,
		key:          key,
		competitions: make(map[string][]byte),
		datasets:     make(map[string][]byte),
		hits:         make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /competitions/data/download-all/{id}", f.downloadCompetition)
	mux.HandleFunc("GET /datasets/download/{owner}/{name}", f.downloadDataset)
	mux.HandleFunc("GET /kernels/list", f.listKernels)
	mux.HandleFunc("GET /kernels/pull", f.pullKernel)
	mux.HandleFunc("POST /kernels/push", f.pushKernel)

	f.server = httptest.NewServer(f.authenticate(mux))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the API root.
func (f *FakeKaggle) URL() string {
	return f.server.URL
}

// Username returns the accepted username.
func (f *FakeKaggle) Username() string {
	return f.username
}

// Key returns the accepted API key.
func (f *FakeKaggle) Key() string {
	return f.key
}

// AddCompetition serves payload as the archive for competition id.
func (f *FakeKaggle) AddCompetition(id string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.competitions[id] = payload
}

// AddDataset serves payload as the archive for owner/name.
func (f *FakeKaggle) AddDataset(slug string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.datasets[slug] = payload
}

// AddKernels registers kernels for listing and pulling.
func (f *FakeKaggle) AddKernels(kernels ...FakeKernel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kernels = append(f.kernels, kernels...)
}

// Pushes returns the kernels pushed so far.
func (f *FakeKaggle) Pushes() []PushRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PushRequest, len(f.pushes))
	copy(out, f.pushes)
	return out
}

// Hits returns how many authenticated requests reached path.
func (f *FakeKaggle) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *FakeKaggle) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, key, ok := r.BasicAuth()
		if !ok || user != f.username || key != f.key {
			http.Error(w, `{"message": "Unauthenticated"}`, http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.hits[r.URL.Path]++
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *FakeKaggle) downloadCompetition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	payload, ok := f.competitions[id]
	f.mu.Unlock()
	serveArchive(w, id+".zip", payload, ok)
}

func (f *FakeKaggle) downloadDataset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	f.mu.Lock()
	payload, ok := f.datasets[r.PathValue("owner")+"/"+name]
	f.mu.Unlock()
	serveArchive(w, name+".zip", payload, ok)
}

func serveArchive(w http.ResponseWriter, filename string, payload []byte, ok bool) {
	if !ok {
		http.NotFound(w, nil)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	_, _ = w.Write(payload)
}

type listItem struct {
	Ref        string `json:"ref"`
	Title      string `json:"title"`
	Language   string `json:"language"`
	KernelType string `json:"kernelType"`
	IsPrivate  bool   `json:"isPrivate"`
}

// listKernels returns the user's kernels one page at a time. Private
// kernels are only included for group=profile on the caller's own account.
func (f *FakeKaggle) listKernels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := q.Get("user")
	mine := q.Get("group") == "profile" && user == f.username
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	f.mu.Lock()
	var matched []listItem
	for _, k := range f.kernels {
		if !strings.HasPrefix(k.Ref, user+"/") || (k.Private && !mine) {
			continue
		}
		matched = append(matched, listItem{
			Ref:        k.Ref,
			Title:      k.Title,
			Language:   k.Language,
			KernelType: k.KernelType,
			IsPrivate:  k.Private,
		})
	}
	f.mu.Unlock()

	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))
	writeJSON(w, matched[start:end])
}

func (f *FakeKaggle) pullKernel(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("userName") + "/" + r.URL.Query().Get("kernelSlug")

	f.mu.Lock()
	var found *FakeKernel
	for i := range f.kernels {
		if f.kernels[i].Ref == ref {
			k := f.kernels[i]
			found = &k
			break
		}
	}
	f.mu.Unlock()

	if found == nil {
		http.NotFound(w, r)
		return
	}
	type part struct {
		Slug       string `json:"slug,omitempty"`
		Source     string `json:"source,omitempty"`
		Language   string `json:"language"`
		KernelType string `json:"kernelType"`
	}
	writeJSON(w, map[string]part{
		"metadata": {Slug: found.Ref, Language: found.Language, KernelType: found.KernelType},
		"blob":     {Source: found.Source, Language: found.Language, KernelType: found.KernelType},
	})
}

func (f *FakeKaggle) pushKernel(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.pushes = append(f.pushes, req)
	version := len(f.pushes)
	f.mu.Unlock()

	if req.Text == "" {
		writeJSON(w, map[string]string{"error": "kernel source is empty"})
		return
	}
	writeJSON(w, map[string]any{
		"ref":           "/code/" + req.Slug,
		"url":           "https://www.kaggle.com/code/" + req.Slug,
		"versionNumber": version,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
