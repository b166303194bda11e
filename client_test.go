package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestCMS(t *testing.T) *httptest.Server {
	t.Helper()

	pages := map[int]string{
		0: `{"data":{"articles":{"items":[
			{"id":"1","slug":"hello","title":"Hello","status":"published","createdAt":1700000000,"updatedAt":"2024-01-02T03:04:05Z"},
			{"id":"2","slug":"world","title":"World","status":"published","createdAt":1700000100,"updatedAt":1700000200}
		],"total":3,"hasMore":true}}}`,
		2: `{"data":{"articles":{"items":[
			{"id":"3","slug":"again","title":"Again","status":"draft","createdAt":1700000300,"updatedAt":1700000400}
		],"total":3,"hasMore":false}}}`,
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")

		switch req.OperationName {
		case "ArticleList":
			offset := int(req.Variables["offset"].(float64))
			body, ok := pages[offset]
			if !ok {
				body = `{"data":{"articles":{"items":[],"total":3,"hasMore":false}}}`
			}
			w.Write([]byte(body))
		case "ArticleDetail":
			id := req.Variables["id"].(string)
			resp := map[string]any{"data": map[string]any{"article": map[string]any{
				"id":       id,
				"slug":     "hello",
				"title":    "Hello",
				"status":   "published",
				"bodyHtml": "<p>正文</p>",
				"author":   map[string]any{"id": "a1", "name": "作者"},
				"tags":     []map[string]any{{"id": "t1", "name": "Go", "slug": "go"}},
			}}}
			json.NewEncoder(w).Encode(resp)
		default:
			t.Errorf("unexpected operation %q", req.OperationName)
		}
	}))
}

func testConfig(baseURL string) *cliConfig {
	return &cliConfig{
		BaseURL:      baseURL,
		PageSize:     2,
		UserAgent:    defaultUserAgent,
		ExportTarget: exportTargetLocal,
	}
}

func TestFetchAllArticlesPaging(t *testing.T) {
	srv := newTestCMS(t)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cache := newCacheRecorder()
	articles, err := fetchAllArticles(context.Background(), srv.Client(), cfg, "token", cache)
	if err != nil {
		t.Fatalf("fetchAllArticles failed: %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles across pages, got %d", len(articles))
	}
	if articles[2].ID != "3" {
		t.Fatalf("unexpected last article: %+v", articles[2])
	}
	// 字符串时间戳应被 flexFloat64 正确解析
	if articles[0].UpdateTime.Float64() <= 0 {
		t.Fatalf("RFC3339 updatedAt not parsed: %v", articles[0].UpdateTime)
	}
}

func TestFetchAllArticlesMaxLimit(t *testing.T) {
	srv := newTestCMS(t)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxArticles = 1
	articles, err := fetchAllArticles(context.Background(), srv.Client(), cfg, "token", newCacheRecorder())
	if err != nil {
		t.Fatalf("fetchAllArticles failed: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected max limit to stop at 1, got %d", len(articles))
	}
}

func TestFetchArticleDetailPopulatesSnapshot(t *testing.T) {
	srv := newTestCMS(t)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cache := newCacheRecorder()
	detail, err := fetchArticleDetail(context.Background(), srv.Client(), cfg, "token", "1", cache)
	if err != nil {
		t.Fatalf("fetchArticleDetail failed: %v", err)
	}
	if detail.Author == nil || detail.Author.Name != "作者" {
		t.Fatalf("author not decoded: %+v", detail.Author)
	}

	snapshot := cache.Snapshot()
	entry, ok := snapshot["Article:1"].(map[string]any)
	if !ok {
		t.Fatalf("snapshot missing Article:1 entry: %v", snapshot)
	}
	if entry["bodyHtml"] != "<p>正文</p>" {
		t.Fatalf("snapshot entry incomplete: %v", entry)
	}
	if _, ok := snapshot["ROOT_QUERY"]; !ok {
		t.Fatal("snapshot missing ROOT_QUERY")
	}
	if _, ok := snapshot["Author:a1"]; !ok {
		t.Fatal("snapshot missing normalized author entity")
	}
}

func TestPostGraphQLErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":null,"errors":[{"message":"forbidden"}]}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	_, err := fetchArticlePage(context.Background(), srv.Client(), cfg, "token", 0, 10)
	if err == nil {
		t.Fatal("expected error from GraphQL errors payload")
	}
}
