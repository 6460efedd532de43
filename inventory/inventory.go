// Package inventory derives repository statistics from the on-disk cache
// tree. It keeps no index: every call re-reads the filesystem, so results
// always reflect what the proxy layer has actually written. Unreadable
// subtrees degrade to zero contributions instead of failing the scan.
package inventory

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Repository categories laid out as <root>/<category>/<org>/<repo>.
var repoCategories = []string{"models", "datasets", "spaces"}

// Flat categories counted for size and file totals only.
var flatCategories = []string{"files", "lfs"}

// Sort keys accepted by ListRepos.
const (
	SortBySize         = "size"
	SortByLastAccess   = "last_access"
	SortByLastModified = "last_modified"
	SortByName         = "name"
)

const (
	recentAccessWindow = 7 * 24 * time.Hour
	staleAccessWindow  = 30 * 24 * time.Hour
)

// CategoryStats summarizes one category directory.
type CategoryStats struct {
	Size      int64  `json:"size"`
	SizeHuman string `json:"size_human"`
	FileCount int    `json:"file_count"`
	RepoCount int    `json:"repo_count"`
}

// Overview summarizes the whole cache tree.
type Overview struct {
	TotalSize      int64                    `json:"total_size"`
	TotalSizeHuman string                   `json:"total_size_human"`
	TotalFiles     int                      `json:"total_files"`
	Categories     map[string]CategoryStats `json:"categories"`
	CategoryPaths  map[string]string        `json:"category_paths"`
	LastUpdated    time.Time                `json:"last_updated"`
}

// RepoRecord describes one cached repository. Records are derived from
// filesystem metadata on every call and never outlive the scan that
// produced them.
type RepoRecord struct {
	RepoType     string    `json:"repo_type"`
	Org          string    `json:"org"`
	Name         string    `json:"repo"`
	FullName     string    `json:"full_name"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	LastModified time.Time `json:"last_modified"`
	LastAccess   time.Time `json:"last_access"`
	Path         string    `json:"path"`
}

// RepoDetails extends RepoRecord with fields that need a deeper read of
// the repository directory.
type RepoDetails struct {
	RepoRecord
	FileCount   int    `json:"file_count"`
	GitBranch   string `json:"git_branch,omitempty"`
	Description string `json:"description"`
}

// ListOptions controls repository enumeration.
type ListOptions struct {
	// RepoType restricts the scan to one category. Empty means all of
	// models, datasets and spaces.
	RepoType string

	// Limit truncates the sorted result. Zero means no limit.
	Limit int

	// SortBy is one of the SortBy* keys. Default is size.
	SortBy string

	// SortOrder is "asc" or "desc". Default is desc.
	SortOrder string
}

// EfficiencyReport classifies cached files by access recency. Files
// accessed between 8 and 30 days ago land in neither bucket; the two
// windows are deliberately not complementary, matching the behavior the
// dashboards were built against.
type EfficiencyReport struct {
	TotalSize         int64     `json:"total_size"`
	TotalSizeHuman    string    `json:"total_size_human"`
	TotalFiles        int       `json:"total_files"`
	RecentAccessCount int       `json:"recent_access_count"`
	StaleAccessCount  int       `json:"old_access_count"`
	AccessEfficiency  float64   `json:"access_efficiency"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Inventory scans a cache root directory on demand. It holds no mutable
// state and is safe for concurrent use.
type Inventory struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Inventory.
type Option func(*Inventory)

// WithLogger sets the logger used for scan diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(inv *Inventory) {
		inv.logger = logger
	}
}

// New creates an inventory over the given cache root.
func New(root string, opts ...Option) *Inventory {
	inv := &Inventory{
		root:   root,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Root returns the cache root directory.
func (inv *Inventory) Root() string {
	return inv.root
}

func (inv *Inventory) categoryPath(category string) string {
	return filepath.Join(inv.root, category)
}

// GetOverview computes size, file and repository counts per category.
// Categories whose directory does not exist are omitted.
func (inv *Inventory) GetOverview() Overview {
	overview := Overview{
		Categories:    make(map[string]CategoryStats),
		CategoryPaths: make(map[string]string),
		LastUpdated:   inv.now(),
	}

	for _, category := range append(append([]string{}, repoCategories...), flatCategories...) {
		dir := inv.categoryPath(category)
		overview.CategoryPaths[category] = dir

		if _, err := os.Stat(dir); err != nil {
			continue
		}

		size := dirSize(dir)
		fileCount := countFiles(dir)

		stats := CategoryStats{
			Size:      size,
			SizeHuman: humanize.IBytes(uint64(size)),
			FileCount: fileCount,
		}
		if isRepoCategory(category) {
			stats.RepoCount = countRepos(dir)
		}

		overview.Categories[category] = stats
		overview.TotalSize += size
		overview.TotalFiles += fileCount
	}

	overview.TotalSizeHuman = humanize.IBytes(uint64(overview.TotalSize))
	return overview
}

// ListRepos enumerates cached repositories across the requested categories,
// sorted by the given key. Ties keep directory enumeration order.
func (inv *Inventory) ListRepos(opts ListOptions) []RepoRecord {
	categories := repoCategories
	if opts.RepoType != "" {
		if !isRepoCategory(opts.RepoType) {
			return nil
		}
		categories = []string{opts.RepoType}
	}

	var repos []RepoRecord
	for _, category := range categories {
		repos = append(repos, inv.scanCategory(category)...)
	}

	sortRepos(repos, opts.SortBy, opts.SortOrder)

	if opts.Limit > 0 && len(repos) > opts.Limit {
		repos = repos[:opts.Limit]
	}
	return repos
}

// scanCategory walks one category's <org>/<repo> directories. Entries that
// cannot be read are skipped.
func (inv *Inventory) scanCategory(category string) []RepoRecord {
	dir := inv.categoryPath(category)

	orgs, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			inv.logger.Debug("skipping unreadable category", "category", category, "error", err)
		}
		return nil
	}

	var repos []RepoRecord
	for _, org := range orgs {
		if !org.IsDir() {
			continue
		}

		entries, err := os.ReadDir(filepath.Join(dir, org.Name()))
		if err != nil {
			inv.logger.Debug("skipping unreadable org", "org", org.Name(), "error", err)
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			record, ok := inv.repoRecord(category, org.Name(), entry.Name())
			if ok {
				repos = append(repos, record)
			}
		}
	}
	return repos
}

// GetRepoDetails resolves one repository directory. It returns nil when
// the repository is not cached; callers treat that as "not found", not as
// an error.
func (inv *Inventory) GetRepoDetails(repoType, org, name string) *RepoDetails {
	if !isRepoCategory(repoType) {
		return nil
	}

	repoPath := filepath.Join(inv.categoryPath(repoType), org, name)
	if _, err := os.Stat(repoPath); err != nil {
		return nil
	}

	record, ok := inv.repoRecord(repoType, org, name)
	if !ok {
		return nil
	}

	return &RepoDetails{
		RepoRecord:  record,
		FileCount:   countFiles(repoPath),
		GitBranch:   gitBranch(repoPath),
		Description: readDescription(repoPath),
	}
}

// Search returns repositories whose full name or description contains the
// query, case-insensitively. No ranking is applied.
func (inv *Inventory) Search(query, repoType string) []RepoRecord {
	query = strings.ToLower(query)

	var results []RepoRecord
	for _, repo := range inv.ListRepos(ListOptions{RepoType: repoType}) {
		if strings.Contains(strings.ToLower(repo.FullName), query) {
			results = append(results, repo)
			continue
		}
		if description := readDescription(repo.Path); description != "" &&
			strings.Contains(strings.ToLower(description), query) {
			results = append(results, repo)
		}
	}
	return results
}

// GetEfficiency walks every cached file and classifies it by access
// recency: accessed within the last 7 days, or not accessed for more than
// 30 days. The 8-30 day band counts toward the total only.
func (inv *Inventory) GetEfficiency() EfficiencyReport {
	now := inv.now()
	report := EfficiencyReport{LastUpdated: now}

	for _, category := range append(append([]string{}, repoCategories...), flatCategories...) {
		dir := inv.categoryPath(category)
		if _, err := os.Stat(dir); err != nil {
			continue
		}

		report.TotalSize += dirSize(dir)

		walkFiles(dir, func(path string, info os.FileInfo) {
			report.TotalFiles++
			age := now.Sub(accessTime(info))
			switch {
			case age < recentAccessWindow:
				report.RecentAccessCount++
			case age > staleAccessWindow:
				report.StaleAccessCount++
			}
		})
	}

	if report.TotalFiles > 0 {
		report.AccessEfficiency = float64(report.RecentAccessCount) / float64(report.TotalFiles) * 100
	}
	report.TotalSizeHuman = humanize.IBytes(uint64(report.TotalSize))
	return report
}

// repoRecord builds a record from a repository directory's metadata.
func (inv *Inventory) repoRecord(repoType, org, name string) (RepoRecord, bool) {
	repoPath := filepath.Join(inv.categoryPath(repoType), org, name)

	info, err := os.Stat(repoPath)
	if err != nil {
		return RepoRecord{}, false
	}

	size := dirSize(repoPath)

	return RepoRecord{
		RepoType:     repoType,
		Org:          org,
		Name:         name,
		FullName:     org + "/" + name,
		Size:         size,
		SizeHuman:    humanize.IBytes(uint64(size)),
		LastModified: info.ModTime(),
		LastAccess:   accessTime(info),
		Path:         repoPath,
	}, true
}

func isRepoCategory(category string) bool {
	for _, c := range repoCategories {
		if c == category {
			return true
		}
	}
	return false
}

func sortRepos(repos []RepoRecord, sortBy, sortOrder string) {
	desc := sortOrder != "asc"

	var less func(a, b RepoRecord) bool
	switch sortBy {
	case SortByLastAccess:
		less = func(a, b RepoRecord) bool { return a.LastAccess.Before(b.LastAccess) }
	case SortByLastModified:
		less = func(a, b RepoRecord) bool { return a.LastModified.Before(b.LastModified) }
	case SortByName:
		less = func(a, b RepoRecord) bool { return a.FullName < b.FullName }
	default:
		less = func(a, b RepoRecord) bool { return a.Size < b.Size }
	}

	sort.SliceStable(repos, func(i, j int) bool {
		if desc {
			return less(repos[j], repos[i])
		}
		return less(repos[i], repos[j])
	})
}
