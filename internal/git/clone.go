package git

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/changeminer/internal/errors"
)

// IsRemoteURL reports whether s names a remote repository rather than a path
func IsRemoteURL(s string) bool {
	for _, prefix := range []string{"https://", "http://", "ssh://", "git://", "git@"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// CloneOrUpdate keeps a bare mirror of url under cacheDir and returns its
// path. Mining needs full history, so the mirror is never shallow.
func CloneOrUpdate(ctx context.Context, url, cacheDir string, logger logrus.FieldLogger) (string, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	repoPath := filepath.Join(cacheDir, generateRepoHash(url)+".git")
	log := logger.WithFields(logrus.Fields{"url": url, "path": repoPath})

	if isBareRepo(repoPath) {
		log.Info("updating cached mirror")
		if out, err := gitCommand(ctx, repoPath, "remote", "update", "--prune").CombinedOutput(); err != nil {
			return "", errors.ExternalError(err, "git remote update failed").WithContext("output", string(out))
		}
		return repoPath, nil
	}
	// Invalid leftovers are removed and cloned again
	os.RemoveAll(repoPath)

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", errors.FileSystemError(err, "failed to create repos directory").WithContext("dir", cacheDir)
	}

	log.Info("cloning mirror")
	if out, err := gitCommand(ctx, "", "clone", "--mirror", url, repoPath).CombinedOutput(); err != nil {
		return "", errors.ExternalError(err, "git clone failed").WithContext("output", string(out))
	}
	return repoPath, nil
}

func gitCommand(ctx context.Context, dir string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	return cmd
}

// generateRepoHash creates a unique hash from repository URL
func generateRepoHash(url string) string {
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")

	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h)[:16]
}

// isBareRepo checks for the layout git clone --mirror produces
func isBareRepo(path string) bool {
	for _, entry := range []string{"HEAD", "objects", "refs"} {
		if _, err := os.Stat(filepath.Join(path, entry)); err != nil {
			return false
		}
	}
	return true
}
