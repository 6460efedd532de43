package inventory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// newTestCache builds a cache tree with one model, one dataset and two
// flat blobs.
func newTestCache(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "models/test-org/test-model/model.bin", "weights")
	writeFile(t, root, "models/test-org/test-model/README.md", "A small language model used by the unit tests")
	writeFile(t, root, "datasets/test-org/test-dataset/data.txt", "dataset content")
	writeFile(t, root, "files/ab/blob1", "blob one")
	writeFile(t, root, "lfs/cd/blob2", "blob two")
	return root
}

func TestOverview(t *testing.T) {
	inv := New(newTestCache(t))

	overview := inv.GetOverview()

	require.Contains(t, overview.Categories, "models")
	require.Contains(t, overview.Categories, "datasets")
	require.Contains(t, overview.Categories, "files")
	require.Contains(t, overview.Categories, "lfs")
	// No spaces directory in the fixture, so the category is omitted.
	require.NotContains(t, overview.Categories, "spaces")

	require.Equal(t, 1, overview.Categories["models"].RepoCount)
	require.Equal(t, 1, overview.Categories["datasets"].RepoCount)
	require.Equal(t, 2, overview.Categories["models"].FileCount)

	// Flat categories are never decomposed into repositories.
	require.Equal(t, 0, overview.Categories["files"].RepoCount)

	require.Equal(t, 5, overview.TotalFiles)
	require.Positive(t, overview.TotalSize)
	require.NotEmpty(t, overview.TotalSizeHuman)
	require.False(t, overview.LastUpdated.IsZero())
}

func TestOverviewMissingRoot(t *testing.T) {
	inv := New(filepath.Join(t.TempDir(), "does-not-exist"))

	overview := inv.GetOverview()
	require.Empty(t, overview.Categories)
	require.Zero(t, overview.TotalSize)
	require.Zero(t, overview.TotalFiles)
}

func TestListRepos(t *testing.T) {
	inv := New(newTestCache(t))

	repos := inv.ListRepos(ListOptions{})
	require.Len(t, repos, 2)

	for _, repo := range repos {
		require.Equal(t, "test-org", repo.Org)
		require.Contains(t, []string{"models", "datasets"}, repo.RepoType)
		require.Equal(t, "test-org/"+repo.Name, repo.FullName)
		require.Positive(t, repo.Size)
		require.NotEmpty(t, repo.SizeHuman)
		require.False(t, repo.LastModified.IsZero())
		require.False(t, repo.LastAccess.IsZero())
		require.DirExists(t, repo.Path)
	}
}

func TestListReposTypeFilter(t *testing.T) {
	inv := New(newTestCache(t))

	repos := inv.ListRepos(ListOptions{RepoType: "models"})
	require.Len(t, repos, 1)
	require.Equal(t, "test-model", repos[0].Name)

	require.Empty(t, inv.ListRepos(ListOptions{RepoType: "spaces"}))
	require.Empty(t, inv.ListRepos(ListOptions{RepoType: "bogus"}))
}

func TestListReposSortAndLimit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "models/org/small/f", "x")
	writeFile(t, root, "models/org/large/f", "xxxxxxxxxxxxxxxx")

	inv := New(root)

	bySize := inv.ListRepos(ListOptions{SortBy: SortBySize})
	require.Equal(t, "large", bySize[0].Name)
	require.Equal(t, "small", bySize[1].Name)

	bySizeAsc := inv.ListRepos(ListOptions{SortBy: SortBySize, SortOrder: "asc"})
	require.Equal(t, "small", bySizeAsc[0].Name)

	byName := inv.ListRepos(ListOptions{SortBy: SortByName, SortOrder: "asc"})
	require.Equal(t, "org/large", byName[0].FullName)
	require.Equal(t, "org/small", byName[1].FullName)

	limited := inv.ListRepos(ListOptions{SortBy: SortBySize, Limit: 1})
	require.Len(t, limited, 1)
	require.Equal(t, "large", limited[0].Name)
}

func TestRepoDetails(t *testing.T) {
	root := newTestCache(t)
	writeFile(t, root, "models/test-org/test-model/.git/HEAD", "ref: refs/heads/main\n")

	inv := New(root)

	details := inv.GetRepoDetails("models", "test-org", "test-model")
	require.NotNil(t, details)
	require.Equal(t, "test-org/test-model", details.FullName)
	require.Equal(t, 3, details.FileCount) // model.bin, README.md, .git/HEAD
	require.Equal(t, "main", details.GitBranch)
	require.Equal(t, "A small language model used by the unit tests", details.Description)
}

func TestRepoDetailsDetachedHead(t *testing.T) {
	root := newTestCache(t)
	writeFile(t, root, "models/test-org/test-model/.git/HEAD", "0123456789abcdef0123456789abcdef01234567\n")

	inv := New(root)

	details := inv.GetRepoDetails("models", "test-org", "test-model")
	require.NotNil(t, details)
	require.Equal(t, "01234567", details.GitBranch)
}

func TestRepoDetailsNotFound(t *testing.T) {
	inv := New(newTestCache(t))

	require.Nil(t, inv.GetRepoDetails("models", "ghost-org", "ghost-repo"))
	require.Nil(t, inv.GetRepoDetails("bogus", "test-org", "test-model"))
}

func TestRepoDetailsNoGitNoReadme(t *testing.T) {
	inv := New(newTestCache(t))

	details := inv.GetRepoDetails("datasets", "test-org", "test-dataset")
	require.NotNil(t, details)
	require.Empty(t, details.GitBranch)
	require.Empty(t, details.Description)
}

func TestSearch(t *testing.T) {
	inv := New(newTestCache(t))

	require.Len(t, inv.Search("test", ""), 2)
	require.Len(t, inv.Search("TEST-MODEL", ""), 1)
	require.Len(t, inv.Search("test", "datasets"), 1)
	require.Empty(t, inv.Search("nonexistent", ""))
}

func TestSearchMatchesDescription(t *testing.T) {
	// "language" appears only in the model's README.
	inv := New(newTestCache(t))

	results := inv.Search("language", "")
	require.Len(t, results, 1)
	require.Equal(t, "test-model", results[0].Name)
}

func TestEfficiencyFreshFiles(t *testing.T) {
	inv := New(newTestCache(t))

	report := inv.GetEfficiency()
	require.Equal(t, 5, report.TotalFiles)
	require.Equal(t, 5, report.RecentAccessCount)
	require.Equal(t, 0, report.StaleAccessCount)
	require.InDelta(t, 100.0, report.AccessEfficiency, 1e-9)
}

func TestEfficiencyBuckets(t *testing.T) {
	root := t.TempDir()
	fresh := writeFile(t, root, "models/org/repo/fresh", "x")
	middle := writeFile(t, root, "models/org/repo/middle", "x")
	stale := writeFile(t, root, "models/org/repo/stale", "x")

	now := time.Now()
	require.NoError(t, os.Chtimes(fresh, now, now))
	// 15 days: falls between the 7-day and 30-day windows, so it counts
	// toward the total but lands in neither bucket.
	require.NoError(t, os.Chtimes(middle, now.Add(-15*24*time.Hour), now.Add(-15*24*time.Hour)))
	require.NoError(t, os.Chtimes(stale, now.Add(-40*24*time.Hour), now.Add(-40*24*time.Hour)))

	report := New(root).GetEfficiency()
	require.Equal(t, 3, report.TotalFiles)
	require.Equal(t, 1, report.RecentAccessCount)
	require.Equal(t, 1, report.StaleAccessCount)
	require.InDelta(t, 100.0/3, report.AccessEfficiency, 1e-6)
	require.GreaterOrEqual(t, report.AccessEfficiency, 0.0)
	require.LessOrEqual(t, report.AccessEfficiency, 100.0)
}

func TestEfficiencyEmptyCache(t *testing.T) {
	inv := New(t.TempDir())

	report := inv.GetEfficiency()
	require.Zero(t, report.TotalFiles)
	require.Zero(t, report.AccessEfficiency)
}
