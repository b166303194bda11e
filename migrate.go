package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"article-migrate/debuglog"
	"article-migrate/httpc"
)

// articleTarget 抽象三种导出目标, 返回目标端对象标识。
type articleTarget interface {
	Deliver(ctx context.Context, article exportArticle, body string) (string, error)
}

type localTarget struct {
	outputPath string
}

func (t *localTarget) Deliver(_ context.Context, article exportArticle, body string) (string, error) {
	return writeLocalArticle(t.outputPath, article, body)
}

type anytypeTarget struct {
	client *anytypeClient
}

func (t *anytypeTarget) Deliver(ctx context.Context, article exportArticle, body string) (string, error) {
	return t.client.createArticleObject(ctx, article, body)
}

type notionTarget struct {
	client *notionClient
}

func (t *notionTarget) Deliver(ctx context.Context, article exportArticle, body string) (string, error) {
	return t.client.createArticlePage(ctx, article, body)
}

func resolveTarget(cfg *cliConfig) (articleTarget, error) {
	switch cfg.ExportTarget {
	case exportTargetLocal:
		return &localTarget{outputPath: cfg.OutputPath}, nil
	case exportTargetAnytype:
		client, err := newAnytypeClient(cfg)
		if err != nil {
			return nil, err
		}
		return &anytypeTarget{client: client}, nil
	case exportTargetNotion:
		client, err := newNotionClient(cfg, httpc.Client())
		if err != nil {
			return nil, err
		}
		return &notionTarget{client: client}, nil
	default:
		return nil, fmt.Errorf("不支持的导出目标: %s", cfg.ExportTarget)
	}
}

func runMigration(ctx context.Context, cfg *cliConfig, store *ConfigStore, httpClient *http.Client, debugCtx *debuglog.Context) error {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return fmt.Errorf("缺少 CMS Bearer Token: 请提供 --token 或设置环境变量 %s", cmsTokenEnvVar)
	}

	target, err := resolveTarget(cfg)
	if err != nil {
		return err
	}

	if debugCtx.Enabled() {
		logInfo("调试日志已开启, 运行目录=%s", debugCtx.RunDir())
	}

	cache := newCacheRecorder()
	articles, err := fetchAllArticles(ctx, httpClient, cfg, token, cache)
	if err != nil {
		return fmt.Errorf("拉取文章列表失败: %w", err)
	}
	logInfo("文章列表拉取完成, 共 %d 篇", len(articles))

	var migrated, skipped, failed int
	for _, meta := range articles {
		select {
		case <-ctx.Done():
			logInfo("收到取消信号, 已迁移 %d/%d 篇", migrated, len(articles))
			return ctx.Err()
		default:
		}

		done, err := store.IsMigrated(ctx, meta.ID, cfg.ExportTarget)
		if err != nil {
			return err
		}
		if done {
			skipped++
			continue
		}

		detail, err := fetchArticleDetail(ctx, httpClient, cfg, token, meta.ID, cache)
		if err != nil {
			logInfo("文章 %s 获取详情失败, 跳过: %v", meta.ID, err)
			failed++
			continue
		}

		// 调试工件: 先写当前缓存快照, 再写文章元数据。
		if err := debugCtx.SaveLog(meta.ID, debuglog.KindCacheSnapshot, cache.Snapshot()); err != nil {
			return err
		}
		if err := debugCtx.SaveLog(meta.ID, debuglog.KindMetaData, buildLogMeta(meta, detail)); err != nil {
			return err
		}

		article := buildExportArticle(meta, detail)
		body := renderArticleMarkdown(article, cfg.OutputTimezone)

		objectID, err := target.Deliver(ctx, article, body)
		if err != nil {
			return fmt.Errorf("文章 %s 导出失败: %w", article.ID, err)
		}
		if err := store.RecordMigrated(ctx, article.ID, article.Title, cfg.ExportTarget, objectID); err != nil {
			return err
		}
		migrated++
		logInfo("文章迁移成功: id=%s title=%q object=%s", article.ID, article.Title, objectID)
	}

	total, err := store.CountMigrated(ctx, cfg.ExportTarget)
	if err != nil {
		return err
	}
	logInfo("迁移结束: 本次成功=%d 跳过=%d 失败=%d, 目标 %s 累计=%d",
		migrated, skipped, failed, cfg.ExportTarget, total)
	return nil
}

func buildLogMeta(meta articleMeta, detail *articleDetail) articleLogMeta {
	logMeta := articleLogMeta{
		ID:          firstNonEmpty(detail.ID, meta.ID),
		Slug:        firstNonEmpty(detail.Slug, meta.Slug),
		Title:       firstNonEmpty(detail.Title, meta.Title),
		Status:      firstNonEmpty(detail.Status, meta.Status),
		CoverURL:    detail.CoverURL,
		CreateTime:  chooseTime(detail.CreateTime.Float64(), meta.CreateTime.Float64()),
		UpdateTime:  chooseTime(detail.UpdateTime.Float64(), meta.UpdateTime.Float64()),
		PublishTime: chooseTime(detail.PublishTime.Float64(), meta.PublishTime.Float64()),
		BodyBytes:   len(detail.BodyHTML),
	}
	if detail.Author != nil {
		logMeta.Author = detail.Author.Name
	}
	if detail.Category != nil {
		logMeta.Category = detail.Category.Name
	}
	for _, tag := range detail.Tags {
		if name := strings.TrimSpace(tag.Name); name != "" {
			logMeta.Tags = append(logMeta.Tags, name)
		}
	}
	return logMeta
}
