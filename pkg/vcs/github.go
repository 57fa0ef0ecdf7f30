package vcs

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v60/github"
)

// GitHubProvider implements SourceProvider against the GitHub API.
type GitHubProvider struct {
	client     *github.Client
	httpClient *http.Client
}

func NewGitHubProvider(token string) *GitHubProvider {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubProvider{
		client:     client,
		httpClient: http.DefaultClient,
	}
}

func (g *GitHubProvider) Resolve(ctx context.Context, owner, name, ref string) (string, string, error) {
	repo, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if strings.Contains(err.Error(), "404") {
			return "", "", fmt.Errorf("%w: %s/%s", ErrRepoNotFound, owner, name)
		}
		return "", "", fmt.Errorf("get repository %s/%s: %w", owner, name, err)
	}

	if ref == "" {
		ref = repo.GetDefaultBranch()
	}

	sha, _, err := g.client.Repositories.GetCommitSHA1(ctx, owner, name, ref, "")
	if err != nil {
		return "", "", fmt.Errorf("%w: %q in %s/%s: %v", ErrInvalidRef, ref, owner, name, err)
	}
	return ref, sha, nil
}

// Fetch downloads the tree at ref as a tarball and unpacks it into a fresh
// temp directory. The caller removes the directory when done.
func (g *GitHubProvider) Fetch(ctx context.Context, owner, name, ref string) (*Checkout, error) {
	resolvedRef, sha, err := g.Resolve(ctx, owner, name, ref)
	if err != nil {
		return nil, err
	}

	opts := &github.RepositoryContentGetOptions{Ref: sha}
	archiveURL, _, err := g.client.Repositories.GetArchiveLink(ctx, owner, name, github.Tarball, opts, 3)
	if err != nil {
		return nil, fmt.Errorf("archive link for %s/%s@%s: %w", owner, name, sha, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build archive request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download archive for %s/%s@%s: %w", owner, name, sha, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download archive for %s/%s@%s: status %d", owner, name, sha, resp.StatusCode)
	}

	dir, err := os.MkdirTemp("", "repo-scan-*")
	if err != nil {
		return nil, fmt.Errorf("create checkout dir: %w", err)
	}

	if err := extractTarball(resp.Body, dir); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("extract archive for %s/%s@%s: %w", owner, name, sha, err)
	}

	return &Checkout{Path: dir, Ref: resolvedRef, CommitSHA: sha}, nil
}

// extractTarball unpacks a gzipped tar stream into dest, stripping the
// single top-level directory GitHub archives carry.
func extractTarball(r io.Reader, dest string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		rel := stripTopLevel(hdr.Name)
		if rel == "" {
			continue
		}

		target := filepath.Join(dest, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("tar entry %q escapes destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		default:
			// Symlinks and other special entries are skipped; backends only
			// read regular manifest files.
		}
	}
}

func stripTopLevel(name string) string {
	name = strings.TrimPrefix(name, "./")
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

// ParseRepoArg splits an "owner/name[@ref]" command-line argument.
func ParseRepoArg(arg string) (owner, name, ref string, err error) {
	if at := strings.LastIndexByte(arg, '@'); at >= 0 {
		ref = arg[at+1:]
		arg = arg[:at]
	}
	parts := strings.SplitN(arg, "/", 3)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("cannot parse repository from %q (want owner/name[@ref])", arg)
	}
	return parts[0], parts[1], ref, nil
}
