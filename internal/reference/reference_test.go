package reference

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/kagglesync/internal/model"
)

func TestParse(t *testing.T) {
	tests := map[string]struct {
		input string
		want  model.Reference
	}{
		"owner and name": {
			input: "acme/foo",
			want:  model.Reference{Owner: "acme", Name: "foo"},
		},
		"with subpath": {
			input: "acme/foo:custom/bar",
			want:  model.Reference{Owner: "acme", Name: "foo", Subpath: "custom/bar"},
		},
		"subpath split on first colon only": {
			input: "acme/foo:a:b",
			want:  model.Reference{Owner: "acme", Name: "foo", Subpath: "a:b"},
		},
		"surrounding whitespace": {
			input: "  acme / foo : extra ",
			want:  model.Reference{Owner: "acme", Name: "foo", Subpath: "extra"},
		},
		"subpath cleaned": {
			input: "acme/foo:./data//raw/",
			want:  model.Reference{Owner: "acme", Name: "foo", Subpath: "data/raw"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"no slash":           "badref",
		"empty owner":        "/foo",
		"empty name":         "acme/",
		"name with slash":    "acme/foo/bar",
		"empty subpath":      "acme/foo:",
		"absolute subpath":   "acme/foo:/etc",
		"escaping subpath":   "acme/foo:../outside",
		"nested parent":      "acme/foo:data/../../x",
		"only dot subpath":   "acme/foo:.",
		"empty string":       "",
		"colon before slash": "acme:foo/bar",
		"parent owner":       "../escaped",
		"dot owner":          "./foo",
		"parent name":        "acme/..",
		"dot name":           "acme/.",
		"padded parent name": "acme/ .. :data",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected *ParseError, got %T", err)
			assert.Equal(t, -1, perr.Index)
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"acme/foo", "acme/foo:custom/bar"} {
		ref, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, ref.String())
	}
}

func TestParseList(t *testing.T) {
	refs, err := ParseList("acme/foo, ,acme/bar:sub, acme/foo,")
	require.NoError(t, err)
	require.Len(t, refs, 3)

	assert.Equal(t, "acme/foo", refs[0].String())
	assert.Equal(t, "acme/bar:sub", refs[1].String())
	assert.Equal(t, "acme/foo", refs[2].String(), "duplicates are preserved")
}

func TestParseList_Empty(t *testing.T) {
	refs, err := ParseList("")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestParseList_ReportsEntry(t *testing.T) {
	_, err := ParseList("acme/foo,broken,acme/bar")
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Index)
	assert.Equal(t, "broken", perr.Input)
	assert.Contains(t, err.Error(), "entry 2")
}

func TestParseKernel(t *testing.T) {
	tests := map[string]struct {
		input        string
		defaultOwner string
		want         model.Reference
		wantErr      bool
	}{
		"full id":                 {input: "bob/exp001", defaultOwner: "alice", want: model.Reference{Owner: "bob", Name: "exp001"}},
		"bare slug uses owner":    {input: "exp001", defaultOwner: "alice", want: model.Reference{Owner: "alice", Name: "exp001"}},
		"bare slug without owner": {input: "exp001", wantErr: true},
		"empty":                   {input: "  ", defaultOwner: "alice", wantErr: true},
		"subpath rejected":        {input: "bob/exp001:x", defaultOwner: "alice", wantErr: true},
		"empty slug":              {input: "bob/", defaultOwner: "alice", wantErr: true},
		"bare parent slug":        {input: "..", defaultOwner: "alice", wantErr: true},
		"bare dot slug":           {input: ".", defaultOwner: "alice", wantErr: true},
		"parent owner":            {input: "../exp001", defaultOwner: "alice", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseKernel(tt.input, tt.defaultOwner)
			if tt.wantErr {
				var perr *ParseError
				require.ErrorAs(t, err, &perr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
