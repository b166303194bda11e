// Package debuglog persists intermediate migration artifacts (GraphQL 缓存
// 快照与文章元数据) to per-run, per-article JSON files. Everything is gated by
// an explicit *Context created once per process: a nil *Context means debug
// mode is off and every operation is a silent no-op.
//
// Run directories are named with the raw ISO-8601 UTC timestamp, colons
// included, so the layout requires a POSIX filesystem.
package debuglog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind selects which artifact file SaveLog writes for an article.
type Kind int

const (
	// KindCacheSnapshot is the normalized GraphQL cache at fetch time.
	KindCacheSnapshot Kind = iota
	// KindMetaData is the assembled article metadata.
	KindMetaData
)

const (
	cacheSnapshotFile = "apollo-state.json"
	metaDataFile      = "meta.json"
)

// timestampLayout 与源 CMS 工具链保持一致: 毫秒精度, UTC, 字面 Z 后缀。
const timestampLayout = "2006-01-02T15:04:05.000Z"

var errBadArticleID = errors.New("文章 ID 含有非法路径字符")

// Context holds the per-run debug state: the absolute run directory and the
// enabled flag. It is created by Init and passed explicitly to every caller
// that wants to persist artifacts; there is no package-level state.
type Context struct {
	enabled   bool
	runDir    string
	startedAt time.Time
}

// Init creates the run directory <root>/<startedAt>/ (including parents,
// idempotent) and returns the debug context with the enabled flag set.
// startedAt should be the process start time; it is rendered in UTC with
// millisecond precision and used verbatim as the directory name.
func Init(root string, startedAt time.Time) (*Context, error) {
	if strings.TrimSpace(root) == "" {
		root = "logs"
	}
	stamp := startedAt.UTC().Format(timestampLayout)
	runDir, err := filepath.Abs(filepath.Join(root, stamp))
	if err != nil {
		return nil, fmt.Errorf("解析调试日志目录失败: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建调试日志目录失败: %w", err)
	}
	return &Context{
		enabled:   true,
		runDir:    runDir,
		startedAt: startedAt,
	}, nil
}

// Enabled reports whether debug artifacts are being persisted.
// A nil context reports false.
func (c *Context) Enabled() bool {
	return c != nil && c.enabled
}

// RunDir returns the absolute per-run log directory, or "" on a nil context.
func (c *Context) RunDir() string {
	if c == nil {
		return ""
	}
	return c.runDir
}

// CacheSnapshotPath returns the absolute path of the cache snapshot artifact
// for the given article.
func (c *Context) CacheSnapshotPath(articleID string) string {
	return c.artifactPath(articleID, cacheSnapshotFile)
}

// MetaPath returns the absolute path of the metadata artifact for the given
// article.
func (c *Context) MetaPath(articleID string) string {
	return c.artifactPath(articleID, metaDataFile)
}

func (c *Context) artifactPath(articleID, file string) string {
	if c == nil {
		return ""
	}
	return filepath.Join(c.runDir, articleID, file)
}

// SaveLog serializes content as indented JSON and writes it to the artifact
// file for articleID/kind, overwriting any previous file. When the context is
// nil or disabled it returns nil without touching content or the filesystem.
func (c *Context) SaveLog(articleID string, kind Kind, content any) error {
	if !c.Enabled() {
		return nil
	}

	if err := checkArticleID(articleID); err != nil {
		return err
	}

	var target string
	switch kind {
	case KindCacheSnapshot:
		target = c.CacheSnapshotPath(articleID)
	case KindMetaData:
		target = c.MetaPath(articleID)
	default:
		return fmt.Errorf("未知的调试日志类型: %d", kind)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("创建文章日志目录失败: %w", err)
	}

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化调试日志失败: %w", err)
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("写入调试日志失败: %w", err)
	}
	return nil
}

// checkArticleID rejects IDs that would escape the run directory. Policy:
// reject, never normalize.
func checkArticleID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: 空 ID", errBadArticleID)
	}
	if strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", errBadArticleID, id)
	}
	if id == "." || id == ".." {
		return fmt.Errorf("%w: %q", errBadArticleID, id)
	}
	return nil
}
