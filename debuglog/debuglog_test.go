package debuglog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

var fixedStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNilContextIsDisabledNoOp(t *testing.T) {
	var ctx *Context

	if ctx.Enabled() {
		t.Fatal("nil context should report disabled")
	}

	// content is not serializable; the gate must short-circuit before
	// serialization is ever attempted
	bad := map[string]any{"ch": make(chan int)}
	if err := ctx.SaveLog("42", KindCacheSnapshot, bad); err != nil {
		t.Fatalf("disabled SaveLog should be a silent no-op, got %v", err)
	}
}

func TestInitEnables(t *testing.T) {
	ctx, err := Init(t.TempDir(), fixedStart)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !ctx.Enabled() {
		t.Fatal("Enabled() should be true after Init")
	}
}

func TestArtifactPaths(t *testing.T) {
	root := t.TempDir()
	ctx, err := Init(root, fixedStart)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	wantSnapshot := filepath.Join(root, "2024-01-01T00:00:00.000Z", "42", "apollo-state.json")
	wantMeta := filepath.Join(root, "2024-01-01T00:00:00.000Z", "42", "meta.json")

	if got := ctx.CacheSnapshotPath("42"); got != wantSnapshot {
		t.Fatalf("cache snapshot path = %q, want %q", got, wantSnapshot)
	}
	if got := ctx.MetaPath("42"); got != wantMeta {
		t.Fatalf("meta path = %q, want %q", got, wantMeta)
	}
	if !filepath.IsAbs(ctx.CacheSnapshotPath("42")) {
		t.Fatal("artifact paths must be absolute")
	}
}

func TestSaveLogRoundTrip(t *testing.T) {
	ctx, err := Init(t.TempDir(), fixedStart)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	content := map[string]any{"a": float64(1)}
	if err := ctx.SaveLog("42", KindCacheSnapshot, content); err != nil {
		t.Fatalf("SaveLog failed: %v", err)
	}

	data, err := os.ReadFile(ctx.CacheSnapshotPath("42"))
	if err != nil {
		t.Fatalf("reading artifact back: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if !reflect.DeepEqual(got, content) {
		t.Fatalf("round trip mismatch: got %v, want %v", got, content)
	}
}

func TestSaveLogOverwrites(t *testing.T) {
	ctx, err := Init(t.TempDir(), fixedStart)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if err := ctx.SaveLog("42", KindMetaData, map[string]any{"v": float64(1)}); err != nil {
		t.Fatalf("first SaveLog failed: %v", err)
	}
	if err := ctx.SaveLog("42", KindMetaData, map[string]any{"v": float64(2)}); err != nil {
		t.Fatalf("second SaveLog failed: %v", err)
	}

	data, err := os.ReadFile(ctx.MetaPath("42"))
	if err != nil {
		t.Fatalf("reading artifact back: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("artifact is not valid JSON after overwrite: %v", err)
	}
	if got["v"] != float64(2) {
		t.Fatalf("expected second write to win, got %v", got)
	}
}

func TestInitIdempotent(t *testing.T) {
	root := t.TempDir()
	if _, err := Init(root, fixedStart); err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	ctx, err := Init(root, fixedStart)
	if err != nil {
		t.Fatalf("second Init on existing directory failed: %v", err)
	}
	if fi, err := os.Stat(ctx.RunDir()); err != nil || !fi.IsDir() {
		t.Fatalf("run directory missing after re-Init: %v", err)
	}
}

func TestSaveLogRejectsUnsafeArticleID(t *testing.T) {
	root := t.TempDir()
	ctx, err := Init(root, fixedStart)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	for _, id := range []string{"../x", "a/b", `a\b`, "..", "", "   "} {
		if err := ctx.SaveLog(id, KindMetaData, map[string]any{}); err == nil {
			t.Fatalf("expected rejection for article ID %q", id)
		}
	}

	// nothing may have been written outside the run directory
	if _, err := os.Stat(filepath.Join(root, "x")); !os.IsNotExist(err) {
		t.Fatalf("unsafe ID escaped the run directory: %v", err)
	}
}

func TestSaveLogSerializationError(t *testing.T) {
	ctx, err := Init(t.TempDir(), fixedStart)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := ctx.SaveLog("42", KindCacheSnapshot, map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected serialization error for non-serializable content")
	}
	if _, err := os.Stat(ctx.CacheSnapshotPath("42")); !os.IsNotExist(err) {
		t.Fatal("failed serialization must not leave an artifact file")
	}
}
