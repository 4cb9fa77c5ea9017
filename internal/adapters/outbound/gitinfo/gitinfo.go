package gitinfo

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Reader implements domain.RevisionReader using go-git.
type Reader struct{}

func New() *Reader {
	return &Reader{}
}

// CommitHash returns the full HEAD hash of the repository containing repoPath.
// Parent directories are searched for .git.
func (r *Reader) CommitHash(repoPath string) (string, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("opening git repo %s: %w", repoPath, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}

	return head.Hash().String(), nil
}
