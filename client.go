package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const articleListQuery = `query ArticleList($limit: Int!, $offset: Int!, $includeDrafts: Boolean!) {
  articles(limit: $limit, offset: $offset, includeDrafts: $includeDrafts) {
    items { id slug title status createdAt updatedAt publishedAt }
    total
    hasMore
  }
}`

const articleDetailQuery = `query ArticleDetail($id: ID!) {
  article(id: $id) {
    id slug title summary bodyHtml status coverUrl
    createdAt updatedAt publishedAt
    author { id name }
    category { id name slug }
    tags { id name slug }
  }
}`

func fetchAllArticles(ctx context.Context, client *http.Client, cfg *cliConfig, token string, cache *cacheRecorder) ([]articleMeta, error) {
	// 拉取分页文章列表并拼接完整集合。
	var result []articleMeta
	offset := cfg.InitialOffset

	for {
		logInfo("请求文章列表 offset=%d limit=%d", offset, cfg.PageSize)
		page, err := fetchArticlePage(ctx, client, cfg, token, offset, cfg.PageSize)
		if err != nil {
			return nil, err
		}

		if len(page.Items) == 0 {
			break
		}

		for _, item := range page.Items {
			cache.recordArticleMeta(item)
			result = append(result, item)
			if cfg.MaxArticles > 0 && len(result) >= cfg.MaxArticles {
				return result, nil
			}
		}

		if !page.HasMore {
			logInfo("文章列表已读完, hasMore=false")
			break
		}
		nextOffset := offset + cfg.PageSize
		if nextOffset <= offset {
			break
		}
		offset = nextOffset
	}

	return result, nil
}

func fetchArticlePage(ctx context.Context, client *http.Client, cfg *cliConfig, token string, offset, limit int) (*articleConnection, error) {
	variables := map[string]any{
		"limit":         limit,
		"offset":        offset,
		"includeDrafts": cfg.IncludeDrafts,
	}

	var parsed articleListData
	if err := postGraphQL(ctx, client, cfg, token, graphQLRequest{
		Query:         articleListQuery,
		Variables:     variables,
		OperationName: "ArticleList",
	}, &parsed); err != nil {
		return nil, fmt.Errorf("请求文章列表失败: %w", err)
	}

	return &parsed.Articles, nil
}

func fetchArticleDetail(ctx context.Context, client *http.Client, cfg *cliConfig, token, articleID string, cache *cacheRecorder) (*articleDetail, error) {
	// 请求单篇文章的完整内容。
	var parsed articleDetailData
	if err := postGraphQL(ctx, client, cfg, token, graphQLRequest{
		Query:         articleDetailQuery,
		Variables:     map[string]any{"id": articleID},
		OperationName: "ArticleDetail",
	}, &parsed); err != nil {
		return nil, fmt.Errorf("请求文章详情失败: %w", err)
	}
	if parsed.Article == nil {
		return nil, fmt.Errorf("文章不存在: %s", articleID)
	}

	cache.recordArticleDetail(*parsed.Article)
	return parsed.Article, nil
}

func postGraphQL(ctx context.Context, client *http.Client, cfg *cliConfig, token string, request graphQLRequest, out any) error {
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("序列化 GraphQL 请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	applyCommonHeaders(req, cfg, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("GraphQL 接口返回异常: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("解析 GraphQL 响应失败: %w", err)
	}
	if len(parsed.Errors) > 0 {
		messages := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			messages = append(messages, e.Message)
		}
		return fmt.Errorf("GraphQL 查询失败: %s", strings.Join(messages, "; "))
	}
	if out != nil {
		if err := json.Unmarshal(parsed.Data, out); err != nil {
			return fmt.Errorf("解析 GraphQL data 失败: %w", err)
		}
	}
	return nil
}

func applyCommonHeaders(req *http.Request, cfg *cliConfig, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", cfg.UserAgent)
}

// cacheRecorder accumulates a normalized view of everything fetched from the
// CMS during one run, keyed Apollo-style ("Article:<id>", "Author:<id>", ...)
// so the snapshot matches what the CMS front-end would hold in its cache.
type cacheRecorder struct {
	state     map[string]any
	rootQuery map[string]any
}

func newCacheRecorder() *cacheRecorder {
	return &cacheRecorder{
		state:     make(map[string]any),
		rootQuery: make(map[string]any),
	}
}

func (c *cacheRecorder) recordArticleMeta(meta articleMeta) {
	if c == nil || meta.ID == "" {
		return
	}
	key := "Article:" + meta.ID
	entry := c.entry(key)
	entry["__typename"] = "Article"
	entry["id"] = meta.ID
	entry["slug"] = meta.Slug
	entry["title"] = meta.Title
	entry["status"] = meta.Status
	entry["createdAt"] = meta.CreateTime.Float64()
	entry["updatedAt"] = meta.UpdateTime.Float64()
	entry["publishedAt"] = meta.PublishTime.Float64()

	refs, _ := c.rootQuery["articles"].([]any)
	c.rootQuery["articles"] = append(refs, map[string]any{"__ref": key})
}

func (c *cacheRecorder) recordArticleDetail(detail articleDetail) {
	if c == nil || detail.ID == "" {
		return
	}
	key := "Article:" + detail.ID
	entry := c.entry(key)
	entry["__typename"] = "Article"
	entry["id"] = detail.ID
	entry["slug"] = detail.Slug
	entry["title"] = detail.Title
	entry["summary"] = detail.Summary
	entry["bodyHtml"] = detail.BodyHTML
	entry["status"] = detail.Status
	entry["coverUrl"] = detail.CoverURL
	entry["createdAt"] = detail.CreateTime.Float64()
	entry["updatedAt"] = detail.UpdateTime.Float64()
	entry["publishedAt"] = detail.PublishTime.Float64()

	if detail.Author != nil && detail.Author.ID != "" {
		authorKey := "Author:" + detail.Author.ID
		author := c.entry(authorKey)
		author["__typename"] = "Author"
		author["id"] = detail.Author.ID
		author["name"] = detail.Author.Name
		entry["author"] = map[string]any{"__ref": authorKey}
	}
	if detail.Category != nil && detail.Category.ID != "" {
		entry["category"] = map[string]any{"__ref": c.recordTag("Category", *detail.Category)}
	}
	if len(detail.Tags) > 0 {
		refs := make([]any, 0, len(detail.Tags))
		for _, tag := range detail.Tags {
			if tag.ID == "" {
				continue
			}
			refs = append(refs, map[string]any{"__ref": c.recordTag("Tag", tag)})
		}
		entry["tags"] = refs
	}

	c.rootQuery[fmt.Sprintf("article({\"id\":%q})", detail.ID)] = map[string]any{"__ref": key}
}

func (c *cacheRecorder) recordTag(typename string, tag articleTag) string {
	key := typename + ":" + tag.ID
	entry := c.entry(key)
	entry["__typename"] = typename
	entry["id"] = tag.ID
	entry["name"] = tag.Name
	entry["slug"] = tag.Slug
	return key
}

func (c *cacheRecorder) entry(key string) map[string]any {
	if existing, ok := c.state[key].(map[string]any); ok {
		return existing
	}
	entry := make(map[string]any)
	c.state[key] = entry
	return entry
}

// Snapshot returns the serializable cache state including ROOT_QUERY.
func (c *cacheRecorder) Snapshot() map[string]any {
	if c == nil {
		return nil
	}
	snapshot := make(map[string]any, len(c.state)+1)
	for k, v := range c.state {
		snapshot[k] = v
	}
	snapshot["ROOT_QUERY"] = c.rootQuery
	return snapshot
}
