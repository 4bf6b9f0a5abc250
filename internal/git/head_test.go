package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestHeadOutsideRepository(t *testing.T) {
	hash, err := Head(t.TempDir())
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty revision, got %q", hash)
	}
}

func TestHeadWithoutCommits(t *testing.T) {
	repoPath := t.TempDir()
	if _, err := git.PlainInit(repoPath, false); err != nil {
		t.Fatalf("Failed to init repo: %v", err)
	}

	hash, err := Head(repoPath)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty revision, got %q", hash)
	}
}

func TestHeadFromSubdirectory(t *testing.T) {
	repoPath := t.TempDir()
	repo, err := git.PlainInit(repoPath, false)
	if err != nil {
		t.Fatalf("Failed to init repo: %v", err)
	}

	sourceDir := filepath.Join(repoPath, "source")
	if mkdirErr := os.MkdirAll(sourceDir, 0o750); mkdirErr != nil {
		t.Fatalf("Failed to create source dir: %v", mkdirErr)
	}
	if writeErr := os.WriteFile(filepath.Join(sourceDir, "index.md"), []byte("# Home"), 0o600); writeErr != nil {
		t.Fatalf("Failed to write file: %v", writeErr)
	}

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}
	if _, addErr := w.Add("."); addErr != nil {
		t.Fatalf("Failed to add files: %v", addErr)
	}
	commit, err := w.Commit("Initial commit", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	hash, err := Head(sourceDir)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if hash != commit.String() {
		t.Errorf("expected %s, got %s", commit, hash)
	}
}

func TestShortHash(t *testing.T) {
	if got := ShortHash("0123456789abcdef"); got != "0123456" {
		t.Errorf("unexpected short hash %q", got)
	}
	if got := ShortHash("abc"); got != "abc" {
		t.Errorf("unexpected short hash %q", got)
	}
}
