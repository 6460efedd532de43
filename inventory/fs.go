package inventory

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// README variants checked for a repository description, in order.
var readmeNames = []string{"README.md", "readme.md", "README.txt", "readme.txt"}

const descriptionLimit = 200

// walkFiles visits every regular file under dir. Unreadable entries are
// skipped so a permission error in one subtree cannot abort the walk.
func walkFiles(dir string, fn func(path string, info os.FileInfo)) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fn(path, info)
		return nil
	})
}

// dirSize returns the recursive byte size of a directory tree.
func dirSize(dir string) int64 {
	var size int64
	walkFiles(dir, func(_ string, info os.FileInfo) {
		size += info.Size()
	})
	return size
}

// countFiles returns the recursive file count of a directory tree.
func countFiles(dir string) int {
	var count int
	walkFiles(dir, func(_ string, _ os.FileInfo) {
		count++
	})
	return count
}

// countRepos counts <org>/<repo> leaf directories two levels below dir.
func countRepos(dir string) int {
	orgs, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	var count int
	for _, org := range orgs {
		if !org.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(dir, org.Name()))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				count++
			}
		}
	}
	return count
}

// gitBranch reads the checked-out branch from <repo>/.git/HEAD without
// invoking git. A detached HEAD yields the first 8 characters of the
// commit hash. Returns "" when the directory is not a git repository.
func gitBranch(repoPath string) string {
	head, err := os.ReadFile(filepath.Join(repoPath, ".git", "HEAD"))
	if err != nil {
		return ""
	}

	content := strings.TrimSpace(string(head))
	if branch, ok := strings.CutPrefix(content, "ref: refs/heads/"); ok {
		return branch
	}
	if len(content) > 8 {
		return content[:8]
	}
	return content
}

// readDescription returns the first 200 characters of the first readable
// README variant, or "" when none exists or none decodes as UTF-8.
func readDescription(repoPath string) string {
	for _, name := range readmeNames {
		content, err := os.ReadFile(filepath.Join(repoPath, name))
		if err != nil {
			continue
		}
		if !utf8.Valid(content) {
			continue
		}

		runes := []rune(string(content))
		if len(runes) > descriptionLimit {
			runes = runes[:descriptionLimit]
		}
		return strings.TrimSpace(string(runes))
	}
	return ""
}
