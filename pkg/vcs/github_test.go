package vcs

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoArg(t *testing.T) {
	cases := []struct {
		arg   string
		owner string
		name  string
		ref   string
		fails bool
	}{
		{arg: "octo/repo", owner: "octo", name: "repo"},
		{arg: "octo/repo@main", owner: "octo", name: "repo", ref: "main"},
		{arg: "octo/repo@v1.2.3", owner: "octo", name: "repo", ref: "v1.2.3"},
		{arg: "octo/repo@feature@sign", owner: "octo", name: "repo", ref: "sign"},
		{arg: "octo", fails: true},
		{arg: "octo/", fails: true},
		{arg: "/repo", fails: true},
		{arg: "a/b/c", fails: true},
		{arg: "", fails: true},
	}

	for _, tc := range cases {
		t.Run(tc.arg, func(t *testing.T) {
			owner, name, ref, err := ParseRepoArg(tc.arg)
			if tc.fails {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.owner, owner)
			assert.Equal(t, tc.name, name)
			assert.Equal(t, tc.ref, ref)
		})
	}
}

type tarEntry struct {
	name string
	body string
	dir  bool
}

func buildTarball(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644}
		if e.dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !e.dir {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestExtractTarballStripsTopLevel(t *testing.T) {
	archive := buildTarball(t, []tarEntry{
		{name: "octo-repo-abc123/", dir: true},
		{name: "octo-repo-abc123/package.json", body: `{"name":"demo"}`},
		{name: "octo-repo-abc123/src/", dir: true},
		{name: "octo-repo-abc123/src/index.js", body: "console.log(1)\n"},
	})

	dest := t.TempDir()
	require.NoError(t, extractTarball(bytes.NewReader(archive), dest))

	data, err := os.ReadFile(filepath.Join(dest, "package.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"demo"}`, string(data))

	_, err = os.Stat(filepath.Join(dest, "src", "index.js"))
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(dest, "octo-repo-abc123"))
	assert.True(t, os.IsNotExist(err), "the archive's top-level directory must be stripped")
}

func TestExtractTarballRejectsPathTraversal(t *testing.T) {
	archive := buildTarball(t, []tarEntry{
		{name: "octo-repo-abc123/../../evil.txt", body: "nope"},
	})

	dest := t.TempDir()
	err := extractTarball(bytes.NewReader(archive), dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")

	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "evil.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractTarballSkipsSpecialEntries(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "octo-repo-abc123/link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd",
	}))
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "octo-repo-abc123/ok.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 2,
	}))
	_, err := tw.Write([]byte("ok"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	dest := t.TempDir()
	require.NoError(t, extractTarball(bytes.NewReader(buf.Bytes()), dest))

	_, err = os.Lstat(filepath.Join(dest, "link"))
	assert.True(t, os.IsNotExist(err), "symlinks are not materialized")

	data, err := os.ReadFile(filepath.Join(dest, "ok.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

func TestExtractTarballBadGzip(t *testing.T) {
	err := extractTarball(bytes.NewReader([]byte("not a gzip stream")), t.TempDir())
	assert.Error(t, err)
}
