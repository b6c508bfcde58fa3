// Package git is the read-only VCS adapter: it resolves the current
// commit of the observed workspace and watches for new commits.
package git

import (
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/codetrail/codetrail/internal/models"
)

// Reader reads commit information from a repository on disk.
type Reader struct {
	repoPath string
}

// NewReader returns a reader for the repository at repoPath. The path
// is not validated here; a missing repository surfaces on first read.
func NewReader(repoPath string) *Reader {
	return &Reader{repoPath: repoPath}
}

// IsRepository reports whether the workspace is a git repository.
func (r *Reader) IsRepository() bool {
	_, err := gogit.PlainOpen(r.repoPath)
	return err == nil
}

// CurrentCommitInfo resolves HEAD and returns its metadata plus the
// files changed against the first parent. Returns nil with no error
// when the workspace is not a repository or has no commits yet: an
// expected empty state, not a failure.
func (r *Reader) CurrentCommitInfo() (*models.CommitInfo, error) {
	repo, err := gogit.PlainOpen(r.repoPath)
	if err != nil {
		return nil, nil
	}

	head, err := repo.Head()
	if err != nil {
		// unborn branch, no commits yet
		return nil, nil
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", head.Hash(), err)
	}

	changed, err := changedFiles(commit)
	if err != nil {
		return nil, fmt.Errorf("failed to diff commit %s: %w", head.Hash(), err)
	}

	branch := ""
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	return &models.CommitInfo{
		Hash:         head.Hash().String(),
		Branch:       branch,
		Author:       fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email),
		Message:      strings.TrimSpace(commit.Message),
		RepositoryID: r.repositoryID(repo),
		ChangedFiles: changed,
		Timestamp:    commit.Author.When,
	}, nil
}

// changedFiles diffs a commit against its first parent; a root commit
// lists every file it introduced.
func changedFiles(commit *object.Commit) ([]string, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, err
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var files []string
	for _, change := range changes {
		name := change.To.Name
		if name == "" {
			name = change.From.Name
		}
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		files = append(files, name)
	}
	return files, nil
}

// repositoryID extracts "owner/repo" from the origin remote URL, or
// falls back to "local/<dir>" when no recognizable remote exists.
func (r *Reader) repositoryID(repo *gogit.Repository) string {
	remote, err := repo.Remote("origin")
	if err == nil && len(remote.Config().URLs) > 0 {
		if id := ParseOwnerRepo(remote.Config().URLs[0]); id != "" {
			return id
		}
	}
	parts := strings.Split(strings.TrimRight(r.repoPath, "/"), "/")
	return "local/" + parts[len(parts)-1]
}

// ParseOwnerRepo extracts owner/repo from the common remote URL forms:
// https://github.com/owner/repo(.git) and git@github.com:owner/repo(.git).
func ParseOwnerRepo(remoteURL string) string {
	remoteURL = strings.TrimSuffix(remoteURL, ".git")

	if idx := strings.Index(remoteURL, "://"); idx >= 0 {
		rest := remoteURL[idx+3:]
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 2 && strings.Count(parts[1], "/") == 1 {
			return parts[1]
		}
		return ""
	}
	if at := strings.Index(remoteURL, "@"); at >= 0 {
		if colon := strings.Index(remoteURL, ":"); colon > at {
			rest := remoteURL[colon+1:]
			if strings.Count(rest, "/") == 1 {
				return rest
			}
		}
	}
	return ""
}
