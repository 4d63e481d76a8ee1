// SPDX-License-Identifier: MPL-2.0

package gitfetch

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// sourceRepo is a local repository tests clone from.
type sourceRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
}

func newSourceRepo(t *testing.T) *sourceRepo {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	s := &sourceRepo{t: t, dir: dir, repo: repo}
	s.commit("initial.txt", "hello")
	return s
}

func (s *sourceRepo) commit(name, content string) plumbing.Hash {
	s.t.Helper()

	if err := os.WriteFile(filepath.Join(s.dir, name), []byte(content), 0o644); err != nil {
		s.t.Fatal(err)
	}
	wt, err := s.repo.Worktree()
	if err != nil {
		s.t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		s.t.Fatal(err)
	}
	hash, err := wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	if err != nil {
		s.t.Fatal(err)
	}
	return hash
}

func (s *sourceRepo) tag(name string, hash plumbing.Hash) {
	s.t.Helper()

	if _, err := s.repo.CreateTag(name, hash, nil); err != nil {
		s.t.Fatal(err)
	}
}

func (s *sourceRepo) defaultBranch() string {
	s.t.Helper()

	head, err := s.repo.Head()
	if err != nil {
		s.t.Fatal(err)
	}
	return head.Name().Short()
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()

	// Point HOME at an empty directory and clear token variables so the
	// fetcher runs unauthenticated against local repositories.
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GIT_TOKEN", "")

	f, err := NewFetcher(t.TempDir(), log.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(f.Close)
	return f
}

func TestCloneAtBranch(t *testing.T) {
	src := newSourceRepo(t)
	f := newTestFetcher(t)
	branch := src.defaultBranch()

	path, err := f.CloneOrUpdate(t.Context(), src.dir, branch, "pkg")
	if err != nil {
		t.Fatalf("CloneOrUpdate: %v", err)
	}
	if path != f.RepoPath("pkg") {
		t.Errorf("path = %s, want %s", path, f.RepoPath("pkg"))
	}
	if _, err := os.Stat(filepath.Join(path, "initial.txt")); err != nil {
		t.Error("working tree should contain the cloned files")
	}

	info := f.Info("pkg")
	if info == nil {
		t.Fatal("Info should describe the acquired repository")
	}
	if info.Ref != branch {
		t.Errorf("Ref = %q, want %q", info.Ref, branch)
	}
	if info.URL != src.dir {
		t.Errorf("URL = %q, want %q", info.URL, src.dir)
	}
	if info.Commit == "" || info.CommitTime.IsZero() {
		t.Errorf("commit metadata missing: %+v", info)
	}
}

func TestUpdatePicksUpNewCommits(t *testing.T) {
	src := newSourceRepo(t)
	f := newTestFetcher(t)
	branch := src.defaultBranch()

	if _, err := f.CloneOrUpdate(t.Context(), src.dir, branch, "pkg"); err != nil {
		t.Fatal(err)
	}
	src.commit("second.txt", "more")

	path, err := f.CloneOrUpdate(t.Context(), src.dir, branch, "pkg")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := os.Stat(filepath.Join(path, "second.txt")); err != nil {
		t.Error("update should fast-forward to the new upstream commit")
	}
}

func TestCheckoutTag(t *testing.T) {
	src := newSourceRepo(t)
	tagged := src.commit("v1.txt", "one")
	src.tag("v1.0.0", tagged)
	src.commit("after.txt", "two")

	f := newTestFetcher(t)
	path, err := f.CloneOrUpdate(t.Context(), src.dir, "v1.0.0", "pkg")
	if err != nil {
		t.Fatalf("CloneOrUpdate: %v", err)
	}

	if _, err := os.Stat(filepath.Join(path, "v1.txt")); err != nil {
		t.Error("tagged file should be present")
	}
	if _, err := os.Stat(filepath.Join(path, "after.txt")); err == nil {
		t.Error("commits after the tag should not be checked out")
	}
	if info := f.Info("pkg"); info == nil || info.Ref != "v1.0.0" {
		t.Errorf("Ref should name the tag: %+v", info)
	}
}

func TestSwitchRefOnExistingClone(t *testing.T) {
	src := newSourceRepo(t)
	tagged := src.commit("v1.txt", "one")
	src.tag("v1.0.0", tagged)
	src.commit("after.txt", "two")

	f := newTestFetcher(t)
	branch := src.defaultBranch()
	if _, err := f.CloneOrUpdate(t.Context(), src.dir, branch, "pkg"); err != nil {
		t.Fatal(err)
	}

	path, err := f.CloneOrUpdate(t.Context(), src.dir, "v1.0.0", "pkg")
	if err != nil {
		t.Fatalf("switch to tag: %v", err)
	}
	if _, err := os.Stat(filepath.Join(path, "after.txt")); err == nil {
		t.Error("switching to the tag should drop later commits from the tree")
	}
	if info := f.Inspect("pkg"); info == nil || info.Ref != "v1.0.0" {
		t.Errorf("Inspect Ref = %+v, want v1.0.0", info)
	}
}

func TestCheckoutCommitHash(t *testing.T) {
	src := newSourceRepo(t)
	pinned := src.commit("pinned.txt", "x")
	src.commit("later.txt", "y")

	f := newTestFetcher(t)
	path, err := f.CloneOrUpdate(t.Context(), src.dir, pinned.String(), "pkg")
	if err != nil {
		t.Fatalf("CloneOrUpdate: %v", err)
	}

	if _, err := os.Stat(filepath.Join(path, "later.txt")); err == nil {
		t.Error("commits after the pinned hash should not be checked out")
	}
	if info := f.Inspect("pkg"); info == nil || info.Ref != pinned.String()[:8] {
		t.Errorf("detached HEAD without a tag should report the short hash: %+v", info)
	}
}

func TestInspectMissingClone(t *testing.T) {
	f := newTestFetcher(t)
	if info := f.Inspect("never-fetched"); info != nil {
		t.Errorf("Inspect of a missing clone = %+v, want nil", info)
	}
	if info := f.Info("never-fetched"); info != nil {
		t.Errorf("Info of a never-acquired name = %+v, want nil", info)
	}
}
