package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func buildExportArticle(meta articleMeta, detail *articleDetail) exportArticle {
	// 将 CMS 返回的文章结构规整为 Markdown 友好的形式。
	export := exportArticle{
		ID:          firstNonEmpty(detail.ID, meta.ID),
		Slug:        firstNonEmpty(detail.Slug, meta.Slug),
		Title:       firstNonEmpty(detail.Title, meta.Title),
		Summary:     normalizeContent(detail.Summary),
		CreateTime:  chooseTime(detail.CreateTime.Float64(), meta.CreateTime.Float64()),
		UpdateTime:  chooseTime(detail.UpdateTime.Float64(), meta.UpdateTime.Float64()),
		PublishTime: chooseTime(detail.PublishTime.Float64(), meta.PublishTime.Float64()),
	}

	if detail.Author != nil {
		export.Author = strings.TrimSpace(detail.Author.Name)
	}
	if detail.Category != nil {
		export.Category = strings.TrimSpace(detail.Category.Name)
	}
	for _, tag := range detail.Tags {
		if name := strings.TrimSpace(tag.Name); name != "" {
			export.Tags = append(export.Tags, name)
		}
	}

	body, err := htmlToMarkdown(detail.BodyHTML)
	if err != nil {
		logInfo("正文 HTML 解析失败, 使用原始文本: article=%s err=%v", export.ID, err)
		body = normalizeContent(detail.BodyHTML)
	}
	export.Body = body

	return export
}

// htmlToMarkdown flattens the CMS rich-text HTML into Markdown-ish text.
func htmlToMarkdown(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var blocks []string
	doc.Find("body").Children().Each(func(_ int, sel *goquery.Selection) {
		if block := renderBlock(sel); block != "" {
			blocks = append(blocks, block)
		}
	})

	// 无块级结构时退化为纯文本。
	if len(blocks) == 0 {
		return normalizeContent(doc.Text()), nil
	}
	return strings.Join(blocks, "\n\n"), nil
}

func renderBlock(sel *goquery.Selection) string {
	text := normalizeContent(sel.Text())

	switch goquery.NodeName(sel) {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		if text == "" {
			return ""
		}
		level := int(goquery.NodeName(sel)[1] - '0')
		return strings.Repeat("#", level+1) + " " + escapeMarkdownHeading(text)
	case "ul", "ol":
		var items []string
		sel.Find("li").Each(func(_ int, li *goquery.Selection) {
			if item := normalizeContent(li.Text()); item != "" {
				items = append(items, "- "+item)
			}
		})
		return strings.Join(items, "\n")
	case "pre":
		code := strings.TrimRight(sel.Text(), "\n")
		if strings.TrimSpace(code) == "" {
			return ""
		}
		return "```\n" + code + "\n```"
	case "blockquote":
		if text == "" {
			return ""
		}
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = "> " + line
		}
		return strings.Join(lines, "\n")
	case "img":
		src, _ := sel.Attr("src")
		alt, _ := sel.Attr("alt")
		if src == "" {
			return ""
		}
		return fmt.Sprintf("![%s](%s)", alt, src)
	case "figure":
		if img := sel.Find("img").First(); img.Length() > 0 {
			return renderBlock(img)
		}
		return text
	case "hr":
		return "---"
	default:
		return text
	}
}

func renderArticleMarkdown(article exportArticle, timezone string) string {
	// 拼装单篇文章的 Markdown 内容, 便于写入目标端。
	var b strings.Builder

	loc := resolveLocation(timezone)
	title := article.Title
	if title == "" {
		title = "(未命名文章)"
	}

	b.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdownHeading(title)))
	b.WriteString(fmt.Sprintf("- 文章ID: `%s`\n", article.ID))
	if article.Slug != "" {
		b.WriteString(fmt.Sprintf("- Slug: `%s`\n", article.Slug))
	}
	if article.Author != "" {
		b.WriteString(fmt.Sprintf("- 作者: %s\n", article.Author))
	}
	if article.Category != "" {
		b.WriteString(fmt.Sprintf("- 分类: %s\n", article.Category))
	}
	if len(article.Tags) > 0 {
		b.WriteString(fmt.Sprintf("- 标签: %s\n", strings.Join(article.Tags, ", ")))
	}
	b.WriteString(fmt.Sprintf("- 创建时间: %s\n", formatTimestamp(article.CreateTime, loc)))
	b.WriteString(fmt.Sprintf("- 最近更新: %s\n\n", formatTimestamp(article.UpdateTime, loc)))

	if article.Summary != "" {
		b.WriteString(fmt.Sprintf("> %s\n\n", article.Summary))
	}

	if article.Body != "" {
		b.WriteString(article.Body)
		b.WriteString("\n")
	}

	return b.String()
}

// writeLocalArticle writes the rendered Markdown under outputPath, named by
// slug (falling back to ID), overwriting any previous export.
func writeLocalArticle(outputPath string, article exportArticle, body string) (string, error) {
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return "", fmt.Errorf("创建输出目录失败: %w", err)
	}

	name := sanitizeFileName(firstNonEmpty(article.Slug, article.ID))
	if name == "" {
		return "", fmt.Errorf("文章缺少可用的文件名: %s", article.ID)
	}
	target := filepath.Join(outputPath, name+".md")
	if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("写入 Markdown 文件失败: %w", err)
	}
	return target, nil
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "..", "-")
	name = replacer.Replace(name)
	return strings.Trim(name, ". ")
}

func formatTimestamp(value float64, loc *time.Location) string {
	if value <= 0 {
		return "-"
	}
	sec := int64(value)
	nsec := int64((value - float64(sec)) * 1e9)
	t := time.Unix(sec, nsec).In(loc)
	return t.Format("2006-01-02 15:04:05 MST")
}

func resolveLocation(name string) *time.Location {
	// 解析时区字符串。
	switch strings.ToLower(name) {
	case "utc":
		return time.UTC
	case "local", "":
		return time.Local
	default:
		loc, err := time.LoadLocation(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "警告: 未能识别时区 %q, 使用本地时区\n", name)
			return time.Local
		}
		return loc
	}
}

func normalizeContent(input string) string {
	if input == "" {
		return ""
	}
	clean := strings.TrimSpace(input)
	if clean == "" {
		return ""
	}
	clean = strings.ReplaceAll(clean, "\u200B", "")
	clean = strings.ReplaceAll(clean, "\uFEFF", "")
	clean = strings.TrimSpace(clean)
	return clean
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func chooseTime(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func escapeMarkdownHeading(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	trimmed = strings.ReplaceAll(trimmed, "\n", " ")
	return trimmed
}
