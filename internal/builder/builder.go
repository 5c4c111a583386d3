// Package builder compiles every annotated extension under a project root,
// skipping files whose content has not changed since the last build.
package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"blockext/internal/models"
	"blockext/internal/pipeline"
	"blockext/internal/utils"
)

const DefaultWorkers = 4

// failedHash marks a tracked source whose last build failed. It never
// equals a real content hash.
const failedHash = "failed"

// FileFailure is a source that did not compile. Err is a *models.Error when
// the failure is located in the source.
type FileFailure struct {
	Path string
	Err  error
}

// Report summarises one BuildProject run. Paths are as discovered.
type Report struct {
	Built   []string
	Skipped []string
	Removed []string
	Failed  []FileFailure
}

type Builder struct {
	compiler   *pipeline.Compiler
	NumWorkers int
	// Out receives progress lines.
	Out io.Writer
	// Force rebuilds every file regardless of recorded hashes.
	Force bool

	mu sync.Mutex
}

func New(c *pipeline.Compiler) *Builder {
	return &Builder{
		compiler:   c,
		NumWorkers: DefaultWorkers,
		Out:        os.Stdout,
	}
}

// BuildProject compiles the sources under rootPath. Per-file failures are
// collected in the report; the returned error covers only discovery and
// state persistence.
func (b *Builder) BuildProject(ctx context.Context, rootPath string) (*Report, error) {
	normalizedRoot, err := utils.NormalizeProjectRoot(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize project root: %w", err)
	}

	projectID, err := utils.ComputeProjectID(normalizedRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to compute project id: %w", err)
	}
	shortID := projectID
	if len(shortID) > 12 {
		shortID = projectID[:12]
	}
	b.printf("→ Project fingerprint: %s\n", shortID)

	files, err := utils.GetAllSourceFiles(normalizedRoot)
	if err != nil {
		return nil, err
	}
	b.printf("✓ Found %d source files\n", len(files))

	report := &Report{}
	if len(files) == 0 {
		b.printf("⚠ No source files found to build\n")
	}

	// Load previous file hashes for incremental builds.
	prevHashes, err := loadFileHashes(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load file hashes: %w", err)
	}
	prevHashes = canonicalizeHashKeys(prevHashes, normalizedRoot)

	currentHashes := make(map[string]string, len(files))
	var changedFiles []string

	for _, f := range files {
		hash, herr := hashFile(f)
		if herr != nil {
			b.errorf("✗ Failed to hash %s: %v\n", f, herr)
			report.Failed = append(report.Failed, FileFailure{Path: f, Err: herr})
			continue
		}
		key := normalizeFilePath(f)
		currentHashes[key] = hash
		if prev, ok := prevHashes[key]; b.Force || !ok || prev != hash || !outputExists(f) {
			changedFiles = append(changedFiles, f)
		} else {
			report.Skipped = append(report.Skipped, f)
		}
	}

	var deletedFiles []string
	for path := range prevHashes {
		if _, ok := currentHashes[path]; !ok {
			deletedFiles = append(deletedFiles, path)
		}
	}
	sort.Strings(deletedFiles)

	b.printf("→ Incremental build: %d added/modified, %d deleted, %d total files\n", len(changedFiles), len(deletedFiles), len(files))

	// Remove compiled output whose source is gone.
	for _, normalizedPath := range deletedFiles {
		out := utils.OutputPath(filepath.FromSlash(normalizedPath))
		if err := os.Remove(out); err != nil {
			if !os.IsNotExist(err) {
				b.errorf("✗ Error removing stale output %s: %v\n", out, err)
			}
			continue
		}
		report.Removed = append(report.Removed, out)
	}

	if len(changedFiles) > 0 {
		workers := b.NumWorkers
		if workers <= 0 {
			workers = DefaultWorkers
		}

		var wg sync.WaitGroup
		fileCh := make(chan string, len(changedFiles))

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.processWorker(ctx, fileCh, report)
			}()
		}

		for _, f := range changedFiles {
			fileCh <- f
		}
		close(fileCh)
		wg.Wait()
	}

	// A failed file must be retried next time even if it does not change,
	// and stay tracked so its old output is removed once the source goes.
	for _, failure := range report.Failed {
		currentHashes[normalizeFilePath(failure.Path)] = failedHash
	}

	if err := saveFileHashes(projectID, currentHashes); err != nil {
		return nil, fmt.Errorf("failed to save file hashes: %w", err)
	}

	sort.Strings(report.Built)
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Path < report.Failed[j].Path })

	if len(report.Failed) > 0 {
		b.printf("✗ Build finished with %d failures\n", len(report.Failed))
	} else {
		b.printf("✓ Build completed\n")
	}
	return report, nil
}

func (b *Builder) processWorker(ctx context.Context, fileCh <-chan string, report *Report) {
	for path := range fileCh {
		err := ctx.Err()
		if err == nil {
			err = b.processFile(ctx, path)
		}

		b.mu.Lock()
		if err != nil {
			report.Failed = append(report.Failed, FileFailure{Path: path, Err: err})
		} else {
			report.Built = append(report.Built, path)
		}
		b.mu.Unlock()
	}
}

func (b *Builder) processFile(ctx context.Context, path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	res, err := b.compiler.Compile(ctx, code)
	if err != nil {
		var located *models.Error
		if errors.As(err, &located) {
			b.errorf("✗ %s:%v\n", path, located)
		} else {
			b.errorf("✗ Error compiling %s: %v\n", path, err)
		}
		return err
	}

	if res.Lint != nil {
		for _, f := range res.Lint.Findings {
			b.printf("  %s:%d: %s: %s [%s]\n", path, f.Line, f.Severity, f.Message, f.Rule)
		}
	}

	out := utils.OutputPath(path)
	if err := os.WriteFile(out, []byte(res.Output), 0o644); err != nil {
		b.errorf("✗ Error writing %s: %v\n", out, err)
		return err
	}

	b.printf("✓ Built %s (%d blocks)\n", out, len(res.Extension.Blocks))
	return nil
}

func (b *Builder) printf(format string, args ...interface{}) {
	if b.Out == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.Out, format, args...)
}

func (b *Builder) errorf(format string, args ...interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(os.Stderr, format, args...)
}

func outputExists(src string) bool {
	_, err := os.Stat(utils.OutputPath(src))
	return err == nil
}

// hashFile computes a stable hash for a file's entire contents. It is used to
// detect added/modified files for incremental builds.
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return utils.HashContent(string(data)), nil
}

func normalizeFilePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}

	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	abs = filepath.Clean(abs)
	normalized := filepath.ToSlash(abs)
	if runtime.GOOS == "windows" {
		normalized = strings.ToLower(normalized)
	}
	return normalized
}

func canonicalizeHashKeys(hashes map[string]string, normalizedRoot string) map[string]string {
	if len(hashes) == 0 {
		return hashes
	}
	root := strings.TrimSpace(normalizedRoot)
	if root == "" {
		return hashes
	}
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		root = strings.ToLower(root)
	}

	out := make(map[string]string, len(hashes))
	for k, v := range hashes {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		p := filepath.FromSlash(key)
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		out[normalizeFilePath(p)] = v
	}
	return out
}

// loadFileHashes loads the last-built file hash map from disk. It is stored
// as a JSON file under ~/.blockext scoped by the project ID.
func loadFileHashes(projectID string) (map[string]string, error) {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	var hashes map[string]string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil, err
	}
	if hashes == nil {
		hashes = make(map[string]string)
	}
	return hashes, nil
}

func saveFileHashes(projectID string, hashes map[string]string) error {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statePath, data, 0o644)
}

func fileHashStatePath(projectID string) (string, error) {
	stateDir, err := utils.UserStateDir()
	if err != nil {
		return "", err
	}
	if projectID == "" {
		projectID = "default"
	}
	fileName := fmt.Sprintf("%s_build_hashes.json", projectID)
	return filepath.Join(stateDir, fileName), nil
}

// ClearProjectState removes the incremental build state for a project.
func ClearProjectState(projectID string) error {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return err
	}
	if err := os.Remove(statePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}
