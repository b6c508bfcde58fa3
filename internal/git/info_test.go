package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gogitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	return dir, repo
}

func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content, message string) string {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)

	full := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	_, err = wt.Add(name)
	require.NoError(t, err)

	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Dev", Email: "dev@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestCurrentCommitInfo(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "README.md", "hello", "initial commit")
	hash := commitFile(t, repo, dir, "internal/api/server.go", "package api", "add api server")

	reader := NewReader(dir)
	assert.True(t, reader.IsRepository())

	info, err := reader.CurrentCommitInfo()
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, hash, info.Hash)
	assert.Equal(t, "master", info.Branch)
	assert.Equal(t, "Dev <dev@example.com>", info.Author)
	assert.Equal(t, "add api server", info.Message)
	assert.Equal(t, []string{"internal/api/server.go"}, info.ChangedFiles,
		"only files changed against the first parent")
	assert.Contains(t, info.RepositoryID, "local/")
}

func TestCurrentCommitInfoRootCommitListsAllFiles(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "main.go", "package main", "initial commit")

	info, err := NewReader(dir).CurrentCommitInfo()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, []string{"main.go"}, info.ChangedFiles)
}

func TestCurrentCommitInfoNonRepository(t *testing.T) {
	reader := NewReader(t.TempDir())
	assert.False(t, reader.IsRepository())

	info, err := reader.CurrentCommitInfo()
	assert.NoError(t, err, "a plain directory is an empty state, not a failure")
	assert.Nil(t, info)
}

func TestCurrentCommitInfoUnbornBranch(t *testing.T) {
	dir, _ := initRepo(t)

	info, err := NewReader(dir).CurrentCommitInfo()
	assert.NoError(t, err)
	assert.Nil(t, info)
}

func TestRepositoryIDFromOriginRemote(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "main.go", "package main", "initial commit")

	_, err := repo.CreateRemote(&gogitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/acme/widget.git"},
	})
	require.NoError(t, err)

	info, err := NewReader(dir).CurrentCommitInfo()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "acme/widget", info.RepositoryID)
}

func TestParseOwnerRepo(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/widget.git": "acme/widget",
		"https://github.com/acme/widget":     "acme/widget",
		"git@github.com:acme/widget.git":     "acme/widget",
		"https://github.com/acme":            "",
		"not a url":                          "",
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseOwnerRepo(input), "input %q", input)
	}
}
