package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	errConfigNotFound = errors.New("config not found")
)

// ConfigPayload 是持久化到 SQLite 的归一化配置。
type ConfigPayload struct {
	Listen              string
	Timezone            string
	Target              string
	BaseURL             string
	PageSize            int
	MaxArticles         int
	InitialOffset       int
	IncludeDrafts       bool
	Token               string
	UserAgent           string
	LogPath             string
	OutputPath          string
	DebugRoot           string
	AnytypeBaseURL      string
	AnytypeVersion      string
	AnytypeSpaceID      string
	AnytypeTypeKey      string
	AnytypeToken        string
	NotionBaseURL       string
	NotionVersion       string
	NotionToken         string
	NotionParentType    string
	NotionParentID      string
	NotionTitleProperty string
}

// secretConfigKeys 中的值写库前加密 (encrypted=1), 前提是提供了 config-secret。
var secretConfigKeys = map[string]struct{}{
	"token":         {},
	"anytype_token": {},
	"notion_token":  {},
}

type ConfigStore struct {
	db     *sql.DB
	secret string
}

func InitStore(path, secret string) (*ConfigStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("配置数据库路径为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建配置目录失败: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=journal_mode(WAL)&_pragma=busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开配置数据库失败: %w", err)
	}
	db.SetConnMaxLifetime(0)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &ConfigStore{
		db:     db,
		secret: strings.TrimSpace(secret),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *ConfigStore) ensureSchema(ctx context.Context) error {
	const configItemsSchema = `
		CREATE TABLE IF NOT EXISTS config_items (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			encrypted INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		);`
	if _, err := s.db.ExecContext(ctx, configItemsSchema); err != nil {
		return fmt.Errorf("初始化配置项表失败: %w", err)
	}

	const migratedArticlesSchema = `
		CREATE TABLE IF NOT EXISTS migrated_articles (
			article_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			target TEXT NOT NULL,
			object_id TEXT NOT NULL DEFAULT '',
			migrated_at TIMESTAMP NOT NULL
		);`
	if _, err := s.db.ExecContext(ctx, migratedArticlesSchema); err != nil {
		return fmt.Errorf("初始化迁移记录表失败: %w", err)
	}
	return nil
}

func (s *ConfigStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// HasConfigItems reports whether at least one config entry exists.
func (s *ConfigStore) HasConfigItems(ctx context.Context) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("配置存储未初始化")
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM config_items`).Scan(&count); err != nil {
		return false, fmt.Errorf("统计配置项失败: %w", err)
	}
	return count > 0, nil
}

// SaveConfig writes the normalized payload into SQLite.
func (s *ConfigStore) SaveConfig(ctx context.Context, payload ConfigPayload) error {
	if s == nil {
		return errors.New("配置存储未初始化")
	}
	items := configPayloadToItems(payload)
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	keys := make([]interface{}, 0, len(items))
	for key, value := range items {
		keys = append(keys, key)
		stored := value
		encryptedFlag := int64(0)
		if _, secretKey := secretConfigKeys[key]; secretKey && s.secret != "" && value != "" {
			sealed, err := sealConfigValue(s.secret, value)
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("加密配置项 %s 失败: %w", key, err)
			}
			stored = sealed
			encryptedFlag = 1
		}
		if _, err := tx.ExecContext(ctx, `
				INSERT INTO config_items(key, value, encrypted, updated_at)
				VALUES(?, ?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value=excluded.value, encrypted=excluded.encrypted, updated_at=excluded.updated_at
				`, key, []byte(stored), encryptedFlag, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("写入配置项 %s 失败: %w", key, err)
		}
	}
	if len(keys) > 0 {
		placeholders := strings.TrimRight(strings.Repeat("?,", len(keys)), ",")
		if _, err := tx.ExecContext(ctx, `DELETE FROM config_items WHERE key NOT IN (`+placeholders+`)`, keys...); err != nil {
			tx.Rollback()
			return fmt.Errorf("清理旧配置项失败: %w", err)
		}
	}
	return tx.Commit()
}

// LoadConfig 读取并返回归一化后的配置。
func (s *ConfigStore) LoadConfig(ctx context.Context) (ConfigPayload, error) {
	var payload ConfigPayload
	if s == nil {
		return payload, errConfigNotFound
	}
	hasConfig, err := s.HasConfigItems(ctx)
	if err != nil {
		return payload, err
	}
	if !hasConfig {
		return payload, errConfigNotFound
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value, encrypted FROM config_items`)
	if err != nil {
		return payload, fmt.Errorf("读取配置项失败: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key       string
			value     []byte
			encrypted int64
		)
		if err := rows.Scan(&key, &value, &encrypted); err != nil {
			return payload, fmt.Errorf("解析配置项失败: %w", err)
		}
		text := string(value)
		if encrypted == 1 {
			plain, err := openConfigValue(s.secret, text)
			if err != nil {
				return payload, fmt.Errorf("解密配置项 %s 失败: %w", key, err)
			}
			text = plain
		}
		applyConfigItem(&payload, key, text)
	}
	if err := rows.Err(); err != nil {
		return payload, fmt.Errorf("读取配置项失败: %w", err)
	}
	return payload, nil
}

// IsMigrated reports whether the article was already delivered to target.
func (s *ConfigStore) IsMigrated(ctx context.Context, articleID, target string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("配置存储未初始化")
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM migrated_articles WHERE article_id = ? AND target = ?`,
		articleID, target).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("查询迁移记录失败: %w", err)
	}
	return count > 0, nil
}

// RecordMigrated 写入 (或覆盖) 一条迁移完成记录。
func (s *ConfigStore) RecordMigrated(ctx context.Context, articleID, title, target, objectID string) error {
	if s == nil || s.db == nil {
		return errors.New("配置存储未初始化")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO migrated_articles(article_id, title, target, object_id, migrated_at)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(article_id) DO UPDATE SET title=excluded.title, target=excluded.target, object_id=excluded.object_id, migrated_at=excluded.migrated_at
	`, articleID, title, target, objectID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("写入迁移记录失败: %w", err)
	}
	return nil
}

// CountMigrated returns the number of recorded migrations for target.
func (s *ConfigStore) CountMigrated(ctx context.Context, target string) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("配置存储未初始化")
	}
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM migrated_articles WHERE target = ?`, target).Scan(&count); err != nil {
		return 0, fmt.Errorf("统计迁移记录失败: %w", err)
	}
	return count, nil
}

func configPayloadToItems(payload ConfigPayload) map[string]string {
	return map[string]string{
		"listen":                payload.Listen,
		"timezone":              payload.Timezone,
		"target":                payload.Target,
		"base_url":              payload.BaseURL,
		"page_size":             strconv.Itoa(payload.PageSize),
		"max_articles":          strconv.Itoa(payload.MaxArticles),
		"initial_offset":        strconv.Itoa(payload.InitialOffset),
		"include_drafts":        strconv.FormatBool(payload.IncludeDrafts),
		"token":                 payload.Token,
		"user_agent":            payload.UserAgent,
		"log_path":              payload.LogPath,
		"output_path":           payload.OutputPath,
		"debug_root":            payload.DebugRoot,
		"anytype_base_url":      payload.AnytypeBaseURL,
		"anytype_version":       payload.AnytypeVersion,
		"anytype_space_id":      payload.AnytypeSpaceID,
		"anytype_type_key":      payload.AnytypeTypeKey,
		"anytype_token":         payload.AnytypeToken,
		"notion_base_url":       payload.NotionBaseURL,
		"notion_version":        payload.NotionVersion,
		"notion_token":          payload.NotionToken,
		"notion_parent_type":    payload.NotionParentType,
		"notion_parent_id":      payload.NotionParentID,
		"notion_title_property": payload.NotionTitleProperty,
	}
}

func applyConfigItem(payload *ConfigPayload, key, value string) {
	if payload == nil {
		return
	}
	value = strings.TrimSpace(value)
	switch key {
	case "listen":
		payload.Listen = value
	case "timezone":
		payload.Timezone = value
	case "target":
		payload.Target = value
	case "base_url":
		payload.BaseURL = value
	case "page_size":
		if v, err := strconv.Atoi(value); err == nil {
			payload.PageSize = v
		}
	case "max_articles":
		if v, err := strconv.Atoi(value); err == nil {
			payload.MaxArticles = v
		}
	case "initial_offset":
		if v, err := strconv.Atoi(value); err == nil {
			payload.InitialOffset = v
		}
	case "include_drafts":
		if b, err := strconv.ParseBool(value); err == nil {
			payload.IncludeDrafts = b
		}
	case "token":
		payload.Token = value
	case "user_agent":
		payload.UserAgent = value
	case "log_path":
		payload.LogPath = value
	case "output_path":
		payload.OutputPath = value
	case "debug_root":
		payload.DebugRoot = value
	case "anytype_base_url":
		payload.AnytypeBaseURL = value
	case "anytype_version":
		payload.AnytypeVersion = value
	case "anytype_space_id":
		payload.AnytypeSpaceID = value
	case "anytype_type_key":
		payload.AnytypeTypeKey = value
	case "anytype_token":
		payload.AnytypeToken = value
	case "notion_base_url":
		payload.NotionBaseURL = value
	case "notion_version":
		payload.NotionVersion = value
	case "notion_token":
		payload.NotionToken = value
	case "notion_parent_type":
		payload.NotionParentType = value
	case "notion_parent_id":
		payload.NotionParentID = value
	case "notion_title_property":
		payload.NotionTitleProperty = value
	}
}
