package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHTMLToMarkdownBlocks(t *testing.T) {
	html := `<h2>标题</h2><p>第一段</p><ul><li>甲</li><li>乙</li></ul><pre>code here</pre><hr><blockquote>引用</blockquote>`
	got, err := htmlToMarkdown(html)
	if err != nil {
		t.Fatalf("htmlToMarkdown failed: %v", err)
	}

	for _, want := range []string{"### 标题", "第一段", "- 甲", "- 乙", "```\ncode here\n```", "---", "> 引用"} {
		if !strings.Contains(got, want) {
			t.Fatalf("markdown missing %q:\n%s", want, got)
		}
	}
}

func TestHTMLToMarkdownPlainFallback(t *testing.T) {
	got, err := htmlToMarkdown("没有任何标签的纯文本")
	if err != nil {
		t.Fatalf("htmlToMarkdown failed: %v", err)
	}
	if got != "没有任何标签的纯文本" {
		t.Fatalf("expected plain text fallback, got %q", got)
	}

	if got, _ := htmlToMarkdown("   "); got != "" {
		t.Fatalf("blank input should render empty, got %q", got)
	}
}

func TestBuildExportArticleMergesMetaAndDetail(t *testing.T) {
	meta := articleMeta{ID: "7", Slug: "fallback-slug", Title: "列表标题", CreateTime: 100}
	detail := &articleDetail{
		Title:    "详情标题",
		BodyHTML: "<p>内容</p>",
		Author:   &articleAuthor{ID: "a1", Name: " 张三 "},
		Tags:     []articleTag{{ID: "t1", Name: "Go"}, {ID: "t2", Name: " "}},
	}

	export := buildExportArticle(meta, detail)
	if export.ID != "7" || export.Slug != "fallback-slug" {
		t.Fatalf("detail gaps should fall back to meta: %+v", export)
	}
	if export.Title != "详情标题" {
		t.Fatalf("detail title should win: %q", export.Title)
	}
	if export.Author != "张三" {
		t.Fatalf("author not trimmed: %q", export.Author)
	}
	if len(export.Tags) != 1 || export.Tags[0] != "Go" {
		t.Fatalf("blank tags should be dropped: %v", export.Tags)
	}
	if export.CreateTime != 100 {
		t.Fatalf("create time fallback missing: %v", export.CreateTime)
	}
}

func TestRenderArticleMarkdownHeader(t *testing.T) {
	article := exportArticle{
		ID:     "7",
		Slug:   "hello",
		Title:  "多行\n标题",
		Author: "张三",
		Body:   "正文内容",
	}
	got := renderArticleMarkdown(article, "UTC")

	if !strings.HasPrefix(got, "# 多行 标题\n") {
		t.Fatalf("heading newline not escaped:\n%s", got)
	}
	for _, want := range []string{"- 文章ID: `7`", "- Slug: `hello`", "- 作者: 张三", "正文内容"} {
		if !strings.Contains(got, want) {
			t.Fatalf("markdown missing %q:\n%s", want, got)
		}
	}
}

func TestWriteLocalArticle(t *testing.T) {
	dir := t.TempDir()
	article := exportArticle{ID: "7", Slug: "a/b:c"}

	target, err := writeLocalArticle(dir, article, "内容")
	if err != nil {
		t.Fatalf("writeLocalArticle failed: %v", err)
	}
	if filepath.Dir(target) != dir {
		t.Fatalf("unsafe slug escaped output dir: %s", target)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading export back: %v", err)
	}
	if string(data) != "内容" {
		t.Fatalf("unexpected file content %q", data)
	}

	// 覆盖写入
	if _, err := writeLocalArticle(dir, article, "更新"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, _ = os.ReadFile(target)
	if string(data) != "更新" {
		t.Fatalf("expected overwrite, got %q", data)
	}
}
