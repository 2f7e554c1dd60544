// Package kaggle implements remote.Client against the Kaggle REST API.
package kaggle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauern/kagglesync/internal/logging"
	"github.com/klauern/kagglesync/internal/model"
	"github.com/klauern/kagglesync/internal/remote"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://www.kaggle.com/api/v1"

// DefaultPageSize is the number of kernels requested per listing page.
const DefaultPageSize = 50

// Client talks to the Kaggle API with basic authentication.
type Client struct {
	baseURL  string
	username string
	key      string
	pageSize int
	client   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithPageSize sets the kernel listing page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// New creates a client for the given credentials. Archive downloads can be
// large, so the default HTTP client only bounds connection setup and
// response headers; cancel through the context.
func New(username, key string, opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		username: username,
		key:      key,
		pageSize: DefaultPageSize,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Identity returns the username the client authenticates as.
func (c *Client) Identity() string {
	return c.username
}

func (c *Client) newRequest(ctx context.Context, method, p string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + p
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.key)
	req.Header.Set("User-Agent", "kagglesync")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and maps error statuses. On success the caller owns the body.
func (c *Client) do(req *http.Request, what string) (*http.Response, error) {
	logging.Debug("api request", "method", req.Method, "url", req.URL.Path)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%s: %w (status %d)", what, remote.ErrUnauthorized, resp.StatusCode)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", what, remote.ErrNotFound)
	default:
		return nil, fmt.Errorf("%s: api returned %d: %s", what, resp.StatusCode, bytes.TrimSpace(detail))
	}
}

func (c *Client) getJSON(ctx context.Context, p string, query url.Values, what string, v any) error {
	req, err := c.newRequest(ctx, http.MethodGet, p, query, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req, what)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s: decode response: %w", what, err)
	}
	return nil
}

// FetchArchive implements remote.Client.
func (c *Client) FetchArchive(ctx context.Context, target model.DownloadTarget) (*remote.Archive, error) {
	ref := target.Reference
	var p string
	switch target.Kind {
	case model.KindCompetition:
		p = "/competitions/data/download-all/" + url.PathEscape(ref.Name)
	case model.KindDataset:
		p = "/datasets/download/" + url.PathEscape(ref.Owner) + "/" + url.PathEscape(ref.Name)
	default:
		return nil, fmt.Errorf("unknown target kind %q", target.Kind)
	}

	req, err := c.newRequest(ctx, http.MethodGet, p, nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req, "download "+target.String())
	if err != nil {
		return nil, err
	}

	name := ref.Name + ".zip"
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			name = path.Base(params["filename"])
		}
	} else if base := path.Base(resp.Request.URL.Path); base != "" && base != "/" && base != ref.Name {
		name = base
	}

	return &remote.Archive{Name: name, Size: resp.ContentLength, Body: resp.Body}, nil
}

type kernelListItem struct {
	Ref        string `json:"ref"`
	Title      string `json:"title"`
	Language   string `json:"language"`
	KernelType string `json:"kernelType"`
	IsPrivate  bool   `json:"isPrivate"`
}

// ListKernels implements remote.Client. Pages are requested until a short
// page is returned.
func (c *Client) ListKernels(ctx context.Context, owner string, includePrivate bool) ([]model.NotebookDescriptor, error) {
	var out []model.NotebookDescriptor
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("user", owner)
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(c.pageSize))
		q.Set("sortBy", "dateRun")
		if includePrivate {
			q.Set("group", "profile")
		}

		var items []kernelListItem
		if err := c.getJSON(ctx, "/kernels/list", q, "list kernels", &items); err != nil {
			return nil, err
		}
		for _, it := range items {
			d, ok := descriptorFromItem(it)
			if !ok {
				logging.Debug("skipping kernel with malformed ref", logging.Kernel(it.Ref))
				continue
			}
			out = append(out, d)
		}
		if len(items) < c.pageSize {
			return out, nil
		}
	}
}

func descriptorFromItem(it kernelListItem) (model.NotebookDescriptor, bool) {
	owner, slug, ok := splitRef(it.Ref)
	if !ok {
		return model.NotebookDescriptor{}, false
	}
	lang, _ := model.ParseLanguage(it.Language)
	return model.NotebookDescriptor{
		Owner:     owner,
		Slug:      slug,
		Title:     it.Title,
		Language:  lang,
		IsPrivate: it.IsPrivate,
	}, true
}

func splitRef(ref string) (string, string, bool) {
	dir, base := path.Split(ref)
	owner := path.Clean(dir)
	if base == "" || owner == "." || owner == "/" {
		return "", "", false
	}
	return owner, base, true
}

type kernelPullResponse struct {
	Metadata struct {
		Slug       string `json:"slug"`
		Language   string `json:"language"`
		KernelType string `json:"kernelType"`
	} `json:"metadata"`
	Blob struct {
		Source     string `json:"source"`
		Language   string `json:"language"`
		KernelType string `json:"kernelType"`
	} `json:"blob"`
}

// FetchKernelFiles implements remote.Client. The platform returns a single
// source blob; it is named after the slug with the extension for its
// language and kernel type.
func (c *Client) FetchKernelFiles(ctx context.Context, ref model.Reference) ([]model.NotebookFile, error) {
	q := url.Values{}
	q.Set("userName", ref.Owner)
	q.Set("kernelSlug", ref.Name)

	var resp kernelPullResponse
	if err := c.getJSON(ctx, "/kernels/pull", q, "pull kernel "+ref.Slug(), &resp); err != nil {
		return nil, err
	}

	langName := resp.Blob.Language
	if langName == "" {
		langName = resp.Metadata.Language
	}
	lang, err := model.ParseLanguage(langName)
	if err != nil {
		lang = model.Python
	}
	kt := model.KernelNotebook
	if resp.Blob.KernelType == string(model.KernelScript) || resp.Metadata.KernelType == string(model.KernelScript) {
		kt = model.KernelScript
	}

	return []model.NotebookFile{{
		Path: ref.Name + model.Extension(lang, kt),
		Data: []byte(resp.Blob.Source),
	}}, nil
}

type pushRequest struct {
	Slug                   string   `json:"slug"`
	NewTitle               string   `json:"newTitle"`
	Text                   string   `json:"text"`
	Language               string   `json:"language"`
	KernelType             string   `json:"kernelType"`
	IsPrivate              bool     `json:"isPrivate"`
	EnableGPU              bool     `json:"enableGpu"`
	EnableTPU              bool     `json:"enableTpu"`
	EnableInternet         bool     `json:"enableInternet"`
	DatasetDataSources     []string `json:"datasetDataSources"`
	CompetitionDataSources []string `json:"competitionDataSources"`
	KernelDataSources      []string `json:"kernelDataSources"`
	ModelDataSources       []string `json:"modelDataSources"`
	CategoryIDs            []string `json:"categoryIds"`
}

type pushResponse struct {
	Ref           string `json:"ref"`
	URL           string `json:"url"`
	VersionNumber int    `json:"versionNumber"`
	Error         string `json:"error"`
}

// PushKernel implements remote.Client. The code file named by meta is read
// from dir.
func (c *Client) PushKernel(ctx context.Context, meta *model.KernelMetadata, dir string) (*remote.PushResult, error) {
	// #nosec G304 - dir is the push directory prepared by the caller
	code, err := os.ReadFile(filepath.Join(dir, meta.CodeFile))
	if err != nil {
		return nil, fmt.Errorf("read code file: %w", err)
	}

	body, err := json.Marshal(pushRequest{
		Slug:                   meta.ID,
		NewTitle:               meta.Title,
		Text:                   string(code),
		Language:               string(meta.Language),
		KernelType:             string(meta.KernelType),
		IsPrivate:              meta.IsPrivate,
		EnableGPU:              meta.EnableGPU,
		EnableTPU:              meta.EnableTPU,
		EnableInternet:         meta.EnableInternet,
		DatasetDataSources:     meta.DatasetSources,
		CompetitionDataSources: meta.CompetitionSources,
		KernelDataSources:      meta.KernelSources,
		ModelDataSources:       meta.ModelSources,
		CategoryIDs:            meta.Keywords,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal push request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/kernels/push", nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req, "push kernel "+meta.ID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("push kernel %s: decode response: %w", meta.ID, err)
	}
	if out.Error != "" {
		return nil, errors.New("push kernel " + meta.ID + ": " + out.Error)
	}
	return &remote.PushResult{Ref: out.Ref, URL: out.URL, VersionNumber: out.VersionNumber}, nil
}

var _ remote.Client = (*Client)(nil)
