package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestViewer(t *testing.T) (*webServer, string) {
	t.Helper()
	root := t.TempDir()

	writeArtifact := func(run, article, file, content string) {
		dir := filepath.Join(root, run, article)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir artifact dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
			t.Fatalf("write artifact: %v", err)
		}
	}
	writeArtifact("2024-01-01T00:00:00.000Z", "1", "apollo-state.json", `{"ROOT_QUERY":{}}`)
	writeArtifact("2024-01-01T00:00:00.000Z", "1", "meta.json", `{"article_id":"1"}`)
	writeArtifact("2024-01-02T00:00:00.000Z", "2", "meta.json", `{"article_id":"2"}`)

	return &webServer{cfg: &cliConfig{}, debugRoot: root}, root
}

func TestRunListNewestFirst(t *testing.T) {
	app, _ := newTestViewer(t)
	srv := httptest.NewServer(app.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs")
	if err != nil {
		t.Fatalf("GET /api/runs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Runs []string `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode run list: %v", err)
	}
	if len(payload.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %v", payload.Runs)
	}
	if payload.Runs[0] != "2024-01-02T00:00:00.000Z" {
		t.Fatalf("newest run should come first: %v", payload.Runs)
	}
}

func TestRunDetailListsArticles(t *testing.T) {
	app, _ := newTestViewer(t)
	srv := httptest.NewServer(app.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs/2024-01-01T00:00:00.000Z")
	if err != nil {
		t.Fatalf("GET run detail: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Run      string   `json:"run"`
		Articles []string `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode run detail: %v", err)
	}
	if len(payload.Articles) != 1 || payload.Articles[0] != "1" {
		t.Fatalf("unexpected article listing: %v", payload.Articles)
	}
}

func TestArtifactFetch(t *testing.T) {
	app, _ := newTestViewer(t)
	srv := httptest.NewServer(app.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/runs/2024-01-01T00:00:00.000Z/1/meta.json")
	if err != nil {
		t.Fatalf("GET artifact: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var meta map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if meta["article_id"] != "1" {
		t.Fatalf("unexpected artifact content: %v", meta)
	}

	// 只允许固定的两个工件文件名
	resp, err = http.Get(srv.URL + "/api/runs/2024-01-01T00:00:00.000Z/1/other.json")
	if err != nil {
		t.Fatalf("GET unknown artifact: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown artifact name should 404, got %d", resp.StatusCode)
	}
}

func TestRunDetailRejectsTraversal(t *testing.T) {
	app, root := newTestViewer(t)

	if err := os.WriteFile(filepath.Join(filepath.Dir(root), "secret.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write bait file: %v", err)
	}

	// ServeMux 会把 ".." 规范化掉, 这里直接打到处理函数验证兜底检查
	for _, path := range []string{
		"/api/runs/..",
		"/api/runs/%2e%2e/%2e%2e",
		"/api/runs/../1/meta.json",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		app.handleRunDetail(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("path %q should 404, got %d", path, rec.Code)
		}
	}
}

func TestSafePathComponent(t *testing.T) {
	for _, p := range []string{"2024-01-01T00:00:00.000Z", "42", "draft-7"} {
		if !safePathComponent(p) {
			t.Fatalf("%q should be accepted", p)
		}
	}
	for _, p := range []string{"", ".", "..", "a/b", `a\b`} {
		if safePathComponent(p) {
			t.Fatalf("%q should be rejected", p)
		}
	}
}
