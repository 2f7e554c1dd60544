package kaggle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/kagglesync/internal/model"
	"github.com/klauern/kagglesync/internal/remote"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithBaseURL(srv.URL), WithHTTPClient(srv.Client())}, opts...)
	return New("alice", "secret-key", opts...)
}

func TestFetchArchive_Dataset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/datasets/download/acme/foo", func(w http.ResponseWriter, r *http.Request) {
		user, key, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret-key", key)
		w.Header().Set("Content-Disposition", `attachment; filename="foo.zip"`)
		w.Header().Set("Content-Length", "7")
		_, _ = io.WriteString(w, "payload")
	})
	c := newTestClient(t, mux)

	archive, err := c.FetchArchive(context.Background(), model.DownloadTarget{
		Kind:      model.KindDataset,
		Reference: model.Reference{Owner: "acme", Name: "foo"},
	})
	require.NoError(t, err)
	defer archive.Body.Close()

	data, err := io.ReadAll(archive.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, "foo.zip", archive.Name)
	assert.Equal(t, int64(7), archive.Size)
}

func TestFetchArchive_Competition(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, "zip")
	}))

	archive, err := c.FetchArchive(context.Background(), model.DownloadTarget{
		Kind:      model.KindCompetition,
		Reference: model.Reference{Name: "titanic"},
	})
	require.NoError(t, err)
	archive.Body.Close()

	assert.Equal(t, "/competitions/data/download-all/titanic", gotPath)
	assert.Equal(t, "titanic.zip", archive.Name)
}

func TestStatusMapping(t *testing.T) {
	tests := map[string]struct {
		status  int
		wantErr error
	}{
		"unauthorized": {status: http.StatusUnauthorized, wantErr: remote.ErrUnauthorized},
		"forbidden":    {status: http.StatusForbidden, wantErr: remote.ErrUnauthorized},
		"not found":    {status: http.StatusNotFound, wantErr: remote.ErrNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			_, err := c.FetchArchive(context.Background(), model.DownloadTarget{
				Kind:      model.KindDataset,
				Reference: model.Reference{Owner: "acme", Name: "foo"},
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotContains(t, err.Error(), "secret-key")
		})
	}
}

func TestServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	_, err := c.ListKernels(context.Background(), "alice", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.NotErrorIs(t, err, remote.ErrNotFound)
}

func TestListKernels_Paginates(t *testing.T) {
	var pages []int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kernels/list", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("user"))
		assert.Equal(t, "profile", r.URL.Query().Get("group"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pages = append(pages, page)

		var items []kernelListItem
		switch page {
		case 1:
			items = []kernelListItem{
				{Ref: "alice/one", Title: "One", Language: "python"},
				{Ref: "alice/two", Title: "Two", Language: "r", IsPrivate: true},
			}
		case 2:
			items = []kernelListItem{{Ref: "alice/three", Title: "Three"}}
		}
		_ = json.NewEncoder(w).Encode(items)
	}), WithPageSize(2))

	got, err := c.ListKernels(context.Background(), "alice", true)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, pages)
	require.Len(t, got, 3)
	assert.Equal(t, model.NotebookDescriptor{Owner: "alice", Slug: "two", Title: "Two", Language: model.R, IsPrivate: true}, got[1])
	assert.Equal(t, "alice/three", got[2].Ref())
}

func TestListKernels_PublicOmitsGroup(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("group"))
		assert.Equal(t, strconv.Itoa(DefaultPageSize), r.URL.Query().Get("pageSize"))
		_, _ = io.WriteString(w, "[]")
	}))
	got, err := c.ListKernels(context.Background(), "bob", false)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchKernelFiles(t *testing.T) {
	tests := map[string]struct {
		language   string
		kernelType string
		wantPath   string
	}{
		"python notebook": {language: "python", kernelType: "notebook", wantPath: "eda.ipynb"},
		"r notebook":      {language: "r", kernelType: "notebook", wantPath: "eda.irnb"},
		"python script":   {language: "python", kernelType: "script", wantPath: "eda.py"},
		"unknown":         {language: "", kernelType: "", wantPath: "eda.ipynb"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/kernels/pull", r.URL.Path)
				assert.Equal(t, "alice", r.URL.Query().Get("userName"))
				assert.Equal(t, "eda", r.URL.Query().Get("kernelSlug"))
				fmt.Fprintf(w, `{"blob":{"source":"src","language":%q,"kernelType":%q}}`, tt.language, tt.kernelType)
			}))

			files, err := c.FetchKernelFiles(context.Background(), model.Reference{Owner: "alice", Name: "eda"})
			require.NoError(t, err)
			require.Len(t, files, 1)
			assert.Equal(t, tt.wantPath, files[0].Path)
			assert.Equal(t, "src", string(files[0].Data))
		})
	}
}

func TestPushKernel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nb.ipynb"), []byte(`{"cells":[]}`), 0o600))

	var got pushRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/kernels/push", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"ref":"alice/eda","url":"https://www.kaggle.com/code/alice/eda","versionNumber":3}`)
	}))

	res, err := c.PushKernel(context.Background(), &model.KernelMetadata{
		ID:                 "alice/eda",
		Title:              "Eda",
		CodeFile:           "nb.ipynb",
		Language:           model.Python,
		KernelType:         model.KernelNotebook,
		EnableGPU:          true,
		CompetitionSources: []string{"titanic"},
	}, dir)
	require.NoError(t, err)

	assert.Equal(t, 3, res.VersionNumber)
	assert.Equal(t, "alice/eda", got.Slug)
	assert.Equal(t, `{"cells":[]}`, got.Text)
	assert.True(t, got.EnableGPU)
	assert.Equal(t, []string{"titanic"}, got.CompetitionDataSources)
}

func TestPushKernel_APIError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nb.ipynb"), nil, 0o600))
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"error":"Notebook not found"}`)
	}))

	_, err := c.PushKernel(context.Background(), &model.KernelMetadata{ID: "alice/eda", CodeFile: "nb.ipynb"}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Notebook not found")
}

func TestSplitRef(t *testing.T) {
	tests := map[string]struct {
		ref       string
		wantOwner string
		wantSlug  string
		wantOK    bool
	}{
		"valid":    {ref: "alice/eda", wantOwner: "alice", wantSlug: "eda", wantOK: true},
		"bare":     {ref: "eda"},
		"trailing": {ref: "alice/"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			owner, slug, ok := splitRef(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantSlug, slug)
		})
	}
}
