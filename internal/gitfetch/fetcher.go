// SPDX-License-Identifier: MPL-2.0

// Package gitfetch acquires package sources from git repositories. A Fetcher
// owns a working directory of local clones, one per logical package name, and
// keeps them up to date across runs so re-builds fetch instead of re-cloning.
package gitfetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

type (
	// Fetcher clones and updates git repositories under a working directory.
	// Repository handles are held in an explicit map and released by Close.
	Fetcher struct {
		workDir string
		auth    transport.AuthMethod
		logger  *log.Logger
		repos   map[string]*git.Repository
	}

	// RepoInfo describes the current state of an acquired repository.
	RepoInfo struct {
		Name       string
		URL        string
		Ref        string
		Commit     string
		CommitTime time.Time
	}
)

// NewFetcher creates a Fetcher rooted at workDir, creating the directory if
// needed. Authentication is configured from SSH keys or token environment
// variables; public HTTPS repositories need neither.
func NewFetcher(workDir string, logger *log.Logger) (*Fetcher, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create git working directory: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	f := &Fetcher{
		workDir: workDir,
		logger:  logger,
		repos:   make(map[string]*git.Repository),
	}
	f.setupAuth()
	return f, nil
}

// CloneOrUpdate ensures the repository for name is present under the working
// directory and checked out at ref. An existing clone is fetched and then
// re-checked-out, so a branch ref tracks the remote head across runs. The
// working tree is never deleted here; it persists for update-in-place fetches.
func (f *Fetcher) CloneOrUpdate(ctx context.Context, url, ref, name string) (string, error) {
	repoPath := f.RepoPath(name)

	repo, err := git.PlainOpen(repoPath)
	switch {
	case err == nil:
		f.logger.Info("updating existing repository", "name", name)
		if fetchErr := f.fetch(ctx, repo); fetchErr != nil {
			return "", fmt.Errorf("fetch %s: %w", name, fetchErr)
		}

		if current := f.currentRef(repo); current != ref {
			f.logger.Info("ref changed, re-checking out", "name", name, "from", current, "to", ref)
		}
		if coErr := f.checkoutRef(repo, ref); coErr != nil {
			return "", fmt.Errorf("checkout %s at %q: %w", name, ref, coErr)
		}

	case errors.Is(err, git.ErrRepositoryNotExists):
		f.logger.Info("cloning repository", "name", name, "url", url)
		repo, err = git.PlainCloneContext(ctx, repoPath, false, &git.CloneOptions{
			URL:  url,
			Auth: f.auth,
		})
		if err != nil {
			return "", fmt.Errorf("clone %s: %w", url, err)
		}
		if coErr := f.checkoutRef(repo, ref); coErr != nil {
			return "", fmt.Errorf("checkout %s at %q: %w", name, ref, coErr)
		}

	default:
		return "", fmt.Errorf("open repository %s: %w", name, err)
	}

	f.repos[name] = repo
	return repoPath, nil
}

// Info returns the state of a previously acquired repository, or nil when
// name was never fetched by this Fetcher. For update checks against clones
// left over from earlier runs, use Inspect.
func (f *Fetcher) Info(name string) *RepoInfo {
	repo, ok := f.repos[name]
	if !ok {
		return nil
	}
	return f.describe(name, repo)
}

// Inspect opens the on-disk clone for name without fetching and reports its
// state. Returns nil when no clone exists.
func (f *Fetcher) Inspect(name string) *RepoInfo {
	repo, err := git.PlainOpen(f.RepoPath(name))
	if err != nil {
		return nil
	}
	return f.describe(name, repo)
}

// RepoPath returns the working-tree location for a logical package name.
func (f *Fetcher) RepoPath(name string) string {
	return filepath.Join(f.workDir, name)
}

// Close releases all repository handles. Working trees stay on disk so the
// next run can fetch instead of clone.
func (f *Fetcher) Close() {
	clear(f.repos)
}

func (f *Fetcher) describe(name string, repo *git.Repository) *RepoInfo {
	head, err := repo.Head()
	if err != nil {
		return nil
	}

	info := &RepoInfo{
		Name:   name,
		Ref:    f.currentRef(repo),
		Commit: head.Hash().String(),
	}

	if commit, cErr := repo.CommitObject(head.Hash()); cErr == nil {
		info.CommitTime = commit.Committer.When
	}
	if remote, rErr := repo.Remote(git.DefaultRemoteName); rErr == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			info.URL = urls[0]
		}
	}

	return info
}

// fetch updates all remote refs and tags. An already-up-to-date remote is not
// an error; anything else is fatal for the package being built.
func (f *Fetcher) fetch(ctx context.Context, repo *git.Repository) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		Auth:  f.auth,
		Tags:  git.AllTags,
		Force: true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

// checkoutRef switches the working tree to ref, interpreting it first as a
// branch, then a tag, then a raw commit. The first interpretation that
// resolves wins. This is a heuristic: an ambiguous name (a branch and a tag
// sharing a name) silently resolves as a branch.
func (f *Fetcher) checkoutRef(repo *git.Repository, ref string) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}

	if err := f.checkoutBranch(repo, wt, ref); err == nil {
		return nil
	}
	if err := f.checkoutTag(repo, wt, ref); err == nil {
		return nil
	}
	return f.checkoutCommit(repo, wt, ref)
}

// checkoutBranch checks ref out as a branch. The working tree is tool-owned,
// so the local branch is force-updated to the fetched remote head on every
// run, not just when the configured ref changes; local edits to a clone do
// not survive a rebuild.
func (f *Fetcher) checkoutBranch(repo *git.Repository, wt *git.Worktree, ref string) error {
	branchRef := plumbing.NewBranchReferenceName(ref)
	remoteRef, remoteErr := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, ref), true)

	if _, err := repo.Reference(branchRef, true); err == nil {
		// Advance the local branch to the fetched remote head first, so a
		// same-branch rebuild picks up new upstream commits.
		if remoteErr == nil {
			if setErr := repo.Storer.SetReference(plumbing.NewHashReference(branchRef, remoteRef.Hash())); setErr != nil {
				return setErr
			}
		}
		return wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Force: true})
	}

	// No local branch; a remote-tracking branch still counts as a branch.
	// Create the local branch at the remote head so later runs can compare
	// the current ref by name.
	if remoteErr != nil {
		return remoteErr
	}
	return wt.Checkout(&git.CheckoutOptions{
		Branch: branchRef,
		Hash:   remoteRef.Hash(),
		Create: true,
		Force:  true,
	})
}

func (f *Fetcher) checkoutTag(repo *git.Repository, wt *git.Worktree, ref string) error {
	tagRef, err := repo.Reference(plumbing.NewTagReferenceName(ref), true)
	if err != nil {
		return err
	}

	hash := tagRef.Hash()
	// Annotated tags point at a tag object; dereference to the commit.
	if tagObj, tErr := repo.TagObject(hash); tErr == nil {
		hash = tagObj.Target
	}

	return wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true})
}

func (f *Fetcher) checkoutCommit(repo *git.Repository, wt *git.Worktree, ref string) error {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return fmt.Errorf("resolve %q as branch, tag, or commit: %w", ref, err)
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true})
}

// currentRef names the checked-out state: the branch name when HEAD is on a
// branch, else a tag name whose commit matches HEAD, else the short commit
// hash.
func (f *Fetcher) currentRef(repo *git.Repository) string {
	head, err := repo.Head()
	if err != nil {
		return ""
	}

	if head.Name().IsBranch() {
		return head.Name().Short()
	}

	if name := f.tagAt(repo, head.Hash()); name != "" {
		return name
	}

	return head.Hash().String()[:8]
}

func (f *Fetcher) tagAt(repo *git.Repository, commit plumbing.Hash) string {
	tags, err := repo.Tags()
	if err != nil {
		return ""
	}
	defer tags.Close()

	var found string
	_ = tags.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		if tagObj, tErr := repo.TagObject(hash); tErr == nil {
			hash = tagObj.Target
		}
		if hash == commit {
			found = ref.Name().Short()
			return errors.New("stop")
		}
		return nil
	})
	return found
}

// setupAuth configures authentication from available credentials: SSH keys
// first, then token environment variables. Public repositories work with
// neither.
func (f *Fetcher) setupAuth() {
	if sshAuth := trySSHAuth(); sshAuth != nil {
		f.auth = sshAuth
		return
	}
	if httpAuth := tryHTTPAuth(); httpAuth != nil {
		f.auth = httpAuth
	}
}

func trySSHAuth() transport.AuthMethod {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	keyPaths := []string{
		filepath.Join(homeDir, ".ssh", "id_ed25519"),
		filepath.Join(homeDir, ".ssh", "id_rsa"),
	}
	for _, keyPath := range keyPaths {
		if _, err := os.Stat(keyPath); err == nil {
			if auth, aErr := ssh.NewPublicKeysFromFile("git", keyPath, ""); aErr == nil {
				return auth
			}
		}
	}
	return nil
}

func tryHTTPAuth() transport.AuthMethod {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return &http.BasicAuth{Username: "x-access-token", Password: token}
	}
	if token := os.Getenv("GIT_TOKEN"); token != "" {
		return &http.BasicAuth{Username: "git", Password: token}
	}
	return nil
}
