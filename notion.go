package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const notionRichTextChunkLimit = 1800

type notionClient struct {
	httpClient       *http.Client
	baseURL          string
	version          string
	token            string
	parentType       string
	parentID         string
	titlePropertyKey string
}

type notionPageRequest struct {
	Parent     notionParent              `json:"parent"`
	Properties map[string]notionProperty `json:"properties"`
	Children   []notionBlock             `json:"children,omitempty"`
}

type notionParent struct {
	Type       string `json:"type"`
	DatabaseID string `json:"database_id,omitempty"`
	PageID     string `json:"page_id,omitempty"`
}

type notionProperty struct {
	Title []notionRichText `json:"title"`
}

type notionRichText struct {
	Type string      `json:"type"`
	Text *notionText `json:"text,omitempty"`
}

type notionText struct {
	Content string `json:"content"`
}

type notionBlock struct {
	Object           string           `json:"object"`
	Type             string           `json:"type"`
	Paragraph        *notionParagraph `json:"paragraph,omitempty"`
	Heading3         *notionHeading   `json:"heading_3,omitempty"`
	BulletedListItem *notionParagraph `json:"bulleted_list_item,omitempty"`
	Divider          *struct{}        `json:"divider,omitempty"`
}

type notionParagraph struct {
	RichText []notionRichText `json:"rich_text"`
}

type notionHeading struct {
	RichText []notionRichText `json:"rich_text"`
}

type notionPageResponse struct {
	ID string `json:"id"`
}

type notionErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newNotionClient(cfg *cliConfig, httpClient *http.Client) (*notionClient, error) {
	token := strings.TrimSpace(cfg.NotionToken)
	if token == "" {
		return nil, fmt.Errorf("缺少 Notion API Key: 请提供 --notion-token 或设置环境变量 %s", notionTokenEnvVar)
	}
	parentID := strings.TrimSpace(cfg.NotionParentID)
	if parentID == "" {
		return nil, fmt.Errorf("缺少 Notion 父级 ID: 请提供 --notion-parent-id 或设置环境变量 %s", notionParentIDEnvVar)
	}
	parentType := strings.ToLower(strings.TrimSpace(cfg.NotionParentType))
	if parentType == "" {
		parentType = "page"
	}
	if parentType != "page" && parentType != "database" {
		return nil, fmt.Errorf("不支持的 Notion 父级类型: %s", parentType)
	}
	titleProperty := strings.TrimSpace(cfg.NotionTitleProperty)
	if titleProperty == "" {
		if parentType == "database" {
			titleProperty = defaultNotionDatabaseTitleProp
		} else {
			titleProperty = defaultNotionPageTitleProp
		}
	}
	baseURL := strings.TrimSpace(cfg.NotionBaseURL)
	if baseURL == "" {
		baseURL = defaultNotionBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	version := strings.TrimSpace(cfg.NotionVersion)
	if version == "" {
		version = defaultNotionVersion
	}

	return &notionClient{
		httpClient:       httpClient,
		baseURL:          baseURL,
		version:          version,
		token:            token,
		parentType:       parentType,
		parentID:         parentID,
		titlePropertyKey: titleProperty,
	}, nil
}

func (c *notionClient) createArticlePage(ctx context.Context, article exportArticle, body string) (string, error) {
	payload := c.buildPageRequest(article, body)
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("序列化 Notion 请求失败: %w", err)
	}

	target := c.baseURL + "/v1/pages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("构造 Notion 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 Notion 接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readBodyForLog(resp.Body)
		var apiErr notionErrorResponse
		if err := json.Unmarshal([]byte(msg), &apiErr); err == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		logInfo("Notion API error: status=%d url=%s body=%s", resp.StatusCode, target, strings.TrimSpace(msg))
		return "", fmt.Errorf("创建 Notion 页面失败: status=%d message=%s", resp.StatusCode, strings.TrimSpace(msg))
	}

	var result notionPageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("解析 Notion 响应失败: %w", err)
	}
	return result.ID, nil
}

func (c *notionClient) buildPageRequest(article exportArticle, body string) notionPageRequest {
	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = fmt.Sprintf("文章 %s", article.ID)
	}

	parent := notionParent{Type: c.parentType + "_id"}
	if c.parentType == "database" {
		parent.DatabaseID = c.parentID
	} else {
		parent.PageID = c.parentID
	}

	return notionPageRequest{
		Parent: parent,
		Properties: map[string]notionProperty{
			c.titlePropertyKey: {Title: richText(title)},
		},
		Children: markdownToNotionBlocks(body),
	}
}

// markdownToNotionBlocks 将渲染好的 Markdown 逐行转为 Notion block。
func markdownToNotionBlocks(body string) []notionBlock {
	var blocks []notionBlock
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case trimmed == "---":
			blocks = append(blocks, notionBlock{Object: "block", Type: "divider", Divider: &struct{}{}})
		case strings.HasPrefix(trimmed, "#"):
			text := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			blocks = append(blocks, notionBlock{
				Object:   "block",
				Type:     "heading_3",
				Heading3: &notionHeading{RichText: richText(text)},
			})
		case strings.HasPrefix(trimmed, "- "):
			blocks = append(blocks, notionBlock{
				Object:           "block",
				Type:             "bulleted_list_item",
				BulletedListItem: &notionParagraph{RichText: richText(strings.TrimPrefix(trimmed, "- "))},
			})
		default:
			blocks = append(blocks, notionBlock{
				Object:    "block",
				Type:      "paragraph",
				Paragraph: &notionParagraph{RichText: richText(trimmed)},
			})
		}
	}
	return blocks
}

// richText chunks content to stay under the Notion rich-text size limit.
func richText(content string) []notionRichText {
	if content == "" {
		return nil
	}
	var parts []notionRichText
	runes := []rune(content)
	for len(runes) > 0 {
		n := notionRichTextChunkLimit
		if n > len(runes) {
			n = len(runes)
		}
		parts = append(parts, notionRichText{
			Type: "text",
			Text: &notionText{Content: string(runes[:n])},
		})
		runes = runes[n:]
	}
	return parts
}
