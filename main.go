package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"article-migrate/debuglog"
	"article-migrate/httpc"
)

// processStart 在进程启动时捕获, 作为本次运行调试日志的目录名。
var processStart = time.Now()

func main() {
	cfg, usedFlags, err := parseFlags()
	if err != nil {
		exitWithError(err)
	}

	fileCfg, err := loadFileConfig(cfg.ConfigFilePath)
	if err != nil {
		exitWithError(fmt.Errorf("读取配置文件失败: %w", err))
	}
	applyFileConfig(cfg, fileCfg, usedFlags)

	if err := loadPersistedConfig(cfg, usedFlags); err != nil {
		exitWithError(err)
	}
	applyEnvFallback(cfg, usedFlags)

	if err := runApp(cfg); err != nil {
		exitWithError(err)
	}
}

func runApp(cfg *cliConfig) error {
	logCloser, err := setupLogger(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer logCloser.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg.BaseURL = ensureBaseURL(cfg.BaseURL)
	cfg.ExportTarget = normalizeExportTarget(cfg.ExportTarget)
	cfg.PageSize = clampPageSize(cfg.PageSize)
	cfg.MaxArticles = nonNegative(cfg.MaxArticles)
	cfg.InitialOffset = nonNegative(cfg.InitialOffset)
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if strings.TrimSpace(cfg.OutputPath) == "" {
		cfg.OutputPath = defaultOutputPath
	}
	if strings.TrimSpace(cfg.DebugRoot) == "" {
		cfg.DebugRoot = defaultDebugRoot
	}

	if cfg.ServeMode {
		logInfo("启动调试日志浏览界面, 监听地址=%s", cfg.ServeAddr)
		if err := runWebServer(ctx, cfg); err != nil {
			return fmt.Errorf("启动浏览界面失败: %w", err)
		}
		return nil
	}

	var debugCtx *debuglog.Context
	if cfg.Debug {
		debugCtx, err = debuglog.Init(cfg.DebugRoot, processStart)
		if err != nil {
			return fmt.Errorf("初始化调试日志失败: %w", err)
		}
	}

	store, err := InitStore(cfg.ConfigDBPath, cfg.ConfigSecret)
	if err != nil {
		return fmt.Errorf("初始化配置存储失败: %w", err)
	}
	defer store.Close()

	logInfo("开始迁移, 源=%s 目标=%s 输出时区=%s", cfg.BaseURL, cfg.ExportTarget, cfg.OutputTimezone)
	if err := runMigration(ctx, cfg, store, httpc.Client(), debugCtx); err != nil {
		return fmt.Errorf("迁移失败: %w", err)
	}
	return nil
}

type cliConfig struct {
	BaseURL             string
	OutputPath          string
	PageSize            int
	MaxArticles         int
	InitialOffset       int
	IncludeDrafts       bool
	Token               string
	OutputTimezone      string
	UserAgent           string
	LogPath             string
	Debug               bool
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
	ExportTarget        string
	ConfigDBPath        string
	ConfigSecret        string
	ConfigFilePath      string
	ServeMode           bool
	ServeAddr           string
}

func parseFlags() (*cliConfig, map[string]struct{}, error) {
	cfg := &cliConfig{}

	flag.StringVar(&cfg.ConfigDBPath, "config-db", defaultConfigDBPath, "配置持久化使用的 SQLite 文件路径")
	flag.StringVar(&cfg.ConfigSecret, "config-secret", "", "加密令牌落库时使用的口令")
	flag.StringVar(&cfg.ConfigFilePath, "config", "", "JSON 配置文件路径")
	flag.BoolVar(&cfg.ServeMode, "serve", false, "启动调试日志浏览界面而非执行迁移")
	flag.StringVar(&cfg.ServeAddr, "listen", "127.0.0.1:8686", "浏览界面监听地址")

	flag.StringVar(&cfg.BaseURL, "base-url", defaultBaseURL, "CMS GraphQL 接口地址")
	flag.StringVar(&cfg.ExportTarget, "target", exportTargetLocal, "导出目标: local, anytype 或 notion")
	flag.StringVar(&cfg.OutputPath, "output", defaultOutputPath, "local 目标的 Markdown 输出目录")
	flag.IntVar(&cfg.PageSize, "page-size", defaultPageSize, "每次拉取的文章数量, 1-100")
	flag.IntVar(&cfg.MaxArticles, "max", defaultMaxArticles, "最多迁移多少篇文章, 0 表示不限制")
	flag.IntVar(&cfg.InitialOffset, "offset", defaultOffset, "从第几篇开始拉取文章")
	flag.BoolVar(&cfg.IncludeDrafts, "include-drafts", false, "是否包含草稿文章")
	flag.StringVar(&cfg.Token, "token", "", "CMS Bearer Token")

	flag.BoolVar(&cfg.Debug, "debug", false, "持久化每篇文章的调试工件 (缓存快照与元数据)")
	flag.StringVar(&cfg.DebugRoot, "debug-root", defaultDebugRoot, "调试工件根目录")

	flag.StringVar(&cfg.OutputTimezone, "timezone", "", "输出时区, 例如 UTC 或 Asia/Shanghai")
	flag.StringVar(&cfg.LogPath, "log-file", "", "日志文件路径")
	flag.StringVar(&cfg.UserAgent, "user-agent", "", "请求使用的 User-Agent")

	flag.StringVar(&cfg.AnytypeBaseURL, "anytype-base-url", defaultAnytypeBaseURL, "Anytype API 基础地址")
	flag.StringVar(&cfg.AnytypeVersion, "anytype-version", defaultAnytypeVersion, "Anytype API 版本")
	flag.StringVar(&cfg.AnytypeSpaceID, "anytype-space-id", "", "Anytype 空间 ID")
	flag.StringVar(&cfg.AnytypeTypeKey, "anytype-type-key", "page", "Anytype 对象类型 Key")
	flag.StringVar(&cfg.AnytypeToken, "anytype-token", "", "Anytype API Key")

	flag.StringVar(&cfg.NotionBaseURL, "notion-base-url", defaultNotionBaseURL, "Notion API 基础地址")
	flag.StringVar(&cfg.NotionVersion, "notion-version", defaultNotionVersion, "Notion API 版本")
	flag.StringVar(&cfg.NotionToken, "notion-token", "", "Notion API Key")
	flag.StringVar(&cfg.NotionParentType, "notion-parent-type", "page", "Notion 父级类型: page 或 database")
	flag.StringVar(&cfg.NotionParentID, "notion-parent-id", "", "Notion 父级 ID")
	flag.StringVar(&cfg.NotionTitleProperty, "notion-title-property", "", "Notion 标题属性名")

	flag.Parse()

	usedFlags := make(map[string]struct{})
	flag.CommandLine.Visit(func(f *flag.Flag) {
		usedFlags[f.Name] = struct{}{}
	})

	cfg.ConfigDBPath = strings.TrimSpace(cfg.ConfigDBPath)
	if cfg.ConfigDBPath == "" {
		cfg.ConfigDBPath = defaultConfigDBPath
	}

	return cfg, usedFlags, nil
}

func exitWithError(err error) {
	logInfo("程序异常结束: %v", err)
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// loadPersistedConfig ensures the SQLite store exists, writes defaults when
// empty, and merges persisted values back into the CLI config without
// overriding explicit flags.
func loadPersistedConfig(cfg *cliConfig, usedFlags map[string]struct{}) error {
	if cfg == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := InitStore(cfg.ConfigDBPath, cfg.ConfigSecret)
	if err != nil {
		return fmt.Errorf("初始化配置存储失败: %w", err)
	}
	defer store.Close()

	hasConfig, err := store.HasConfigItems(ctx)
	if err != nil {
		return fmt.Errorf("检查配置状态失败: %w", err)
	}
	if !hasConfig {
		payload := configToPayload(cfg)
		if err := store.SaveConfig(ctx, payload); err != nil {
			return fmt.Errorf("写入默认配置失败: %w", err)
		}
		applyPersistedConfig(cfg, payload, usedFlags)
		return nil
	}

	payload, err := store.LoadConfig(ctx)
	if err != nil {
		if errors.Is(err, errConfigNotFound) {
			return nil
		}
		return fmt.Errorf("读取配置失败: %w", err)
	}
	applyPersistedConfig(cfg, payload, usedFlags)
	return nil
}

func configToPayload(cfg *cliConfig) ConfigPayload {
	return ConfigPayload{
		Listen:              cfg.ServeAddr,
		Timezone:            cfg.OutputTimezone,
		Target:              cfg.ExportTarget,
		BaseURL:             cfg.BaseURL,
		PageSize:            cfg.PageSize,
		MaxArticles:         cfg.MaxArticles,
		InitialOffset:       cfg.InitialOffset,
		IncludeDrafts:       cfg.IncludeDrafts,
		Token:               cfg.Token,
		UserAgent:           cfg.UserAgent,
		LogPath:             cfg.LogPath,
		OutputPath:          cfg.OutputPath,
		DebugRoot:           cfg.DebugRoot,
		AnytypeBaseURL:      cfg.AnytypeBaseURL,
		AnytypeVersion:      cfg.AnytypeVersion,
		AnytypeSpaceID:      cfg.AnytypeSpaceID,
		AnytypeTypeKey:      cfg.AnytypeTypeKey,
		AnytypeToken:        cfg.AnytypeToken,
		NotionBaseURL:       cfg.NotionBaseURL,
		NotionVersion:       cfg.NotionVersion,
		NotionToken:         cfg.NotionToken,
		NotionParentType:    cfg.NotionParentType,
		NotionParentID:      cfg.NotionParentID,
		NotionTitleProperty: cfg.NotionTitleProperty,
	}
}

func applyPersistedConfig(cfg *cliConfig, payload ConfigPayload, usedFlags map[string]struct{}) {
	if cfg == nil {
		return
	}
	applyPersistedString(usedFlags, "listen", &cfg.ServeAddr, payload.Listen)
	applyPersistedString(usedFlags, "timezone", &cfg.OutputTimezone, payload.Timezone)
	if !flagUsed(usedFlags, "target") {
		cfg.ExportTarget = normalizeExportTarget(payload.Target)
	}
	if !flagUsed(usedFlags, "base-url") {
		cfg.BaseURL = ensureBaseURL(payload.BaseURL)
	}
	applyPersistedInt(usedFlags, "page-size", &cfg.PageSize, payload.PageSize)
	applyPersistedInt(usedFlags, "max", &cfg.MaxArticles, payload.MaxArticles)
	applyPersistedInt(usedFlags, "offset", &cfg.InitialOffset, payload.InitialOffset)
	applyPersistedBool(usedFlags, "include-drafts", &cfg.IncludeDrafts, payload.IncludeDrafts)
	applyPersistedString(usedFlags, "token", &cfg.Token, payload.Token)
	applyPersistedString(usedFlags, "user-agent", &cfg.UserAgent, payload.UserAgent)
	applyPersistedString(usedFlags, "log-file", &cfg.LogPath, payload.LogPath)
	applyPersistedString(usedFlags, "output", &cfg.OutputPath, payload.OutputPath)
	applyPersistedString(usedFlags, "debug-root", &cfg.DebugRoot, payload.DebugRoot)

	applyPersistedString(usedFlags, "anytype-base-url", &cfg.AnytypeBaseURL, payload.AnytypeBaseURL)
	applyPersistedString(usedFlags, "anytype-version", &cfg.AnytypeVersion, payload.AnytypeVersion)
	applyPersistedString(usedFlags, "anytype-space-id", &cfg.AnytypeSpaceID, payload.AnytypeSpaceID)
	applyPersistedString(usedFlags, "anytype-type-key", &cfg.AnytypeTypeKey, payload.AnytypeTypeKey)
	applyPersistedString(usedFlags, "anytype-token", &cfg.AnytypeToken, payload.AnytypeToken)
	applyPersistedString(usedFlags, "notion-base-url", &cfg.NotionBaseURL, payload.NotionBaseURL)
	applyPersistedString(usedFlags, "notion-version", &cfg.NotionVersion, payload.NotionVersion)
	applyPersistedString(usedFlags, "notion-token", &cfg.NotionToken, payload.NotionToken)
	applyPersistedString(usedFlags, "notion-parent-type", &cfg.NotionParentType, payload.NotionParentType)
	applyPersistedString(usedFlags, "notion-parent-id", &cfg.NotionParentID, payload.NotionParentID)
	applyPersistedString(usedFlags, "notion-title-property", &cfg.NotionTitleProperty, payload.NotionTitleProperty)
}

func applyPersistedString(usedFlags map[string]struct{}, flagName string, dst *string, value string) {
	if dst == nil || flagUsed(usedFlags, flagName) {
		return
	}
	if strings.TrimSpace(value) == "" {
		return
	}
	*dst = strings.TrimSpace(value)
}

func applyPersistedInt(usedFlags map[string]struct{}, flagName string, dst *int, value int) {
	if dst == nil || flagUsed(usedFlags, flagName) {
		return
	}
	*dst = value
}

func applyPersistedBool(usedFlags map[string]struct{}, flagName string, dst *bool, value bool) {
	if dst == nil || flagUsed(usedFlags, flagName) {
		return
	}
	*dst = value
}

func flagUsed(usedFlags map[string]struct{}, name string) bool {
	if name == "" || usedFlags == nil {
		return false
	}
	_, ok := usedFlags[name]
	return ok
}

func applyEnvFallback(cfg *cliConfig, usedFlags map[string]struct{}) {
	if cfg == nil {
		return
	}

	applyEnvString(usedFlags, "token", &cfg.Token, cmsTokenEnvVar, "CMS_TOKEN")
	applyEnvString(usedFlags, "base-url", &cfg.BaseURL, "CMS_GRAPHQL_URL")
	applyEnvString(usedFlags, "user-agent", &cfg.UserAgent, "CMS_USER_AGENT")

	applyEnvString(usedFlags, "timezone", &cfg.OutputTimezone, "MIGRATE_TIMEZONE")
	applyEnvString(usedFlags, "log-file", &cfg.LogPath, "MIGRATE_LOG_PATH")
	applyEnvString(usedFlags, "debug-root", &cfg.DebugRoot, "MIGRATE_DEBUG_ROOT")

	applyEnvString(usedFlags, "anytype-base-url", &cfg.AnytypeBaseURL, "ANYTYPE_BASE_URL")
	applyEnvString(usedFlags, "anytype-version", &cfg.AnytypeVersion, "ANYTYPE_VERSION")
	applyEnvString(usedFlags, "anytype-space-id", &cfg.AnytypeSpaceID, "ANYTYPE_SPACE_ID")
	applyEnvString(usedFlags, "anytype-type-key", &cfg.AnytypeTypeKey, "ANYTYPE_TYPE_KEY")
	applyEnvString(usedFlags, "anytype-token", &cfg.AnytypeToken, anytypeTokenEnvVar, "ANYTYPE_API_KEY")

	applyEnvString(usedFlags, "notion-base-url", &cfg.NotionBaseURL, "NOTION_BASE_URL")
	applyEnvString(usedFlags, "notion-version", &cfg.NotionVersion, "NOTION_VERSION")
	applyEnvString(usedFlags, "notion-token", &cfg.NotionToken, notionTokenEnvVar, "NOTION_API_KEY")
	applyEnvString(usedFlags, "notion-parent-type", &cfg.NotionParentType, "NOTION_PARENT_TYPE")
	applyEnvString(usedFlags, "notion-parent-id", &cfg.NotionParentID, notionParentIDEnvVar)
	applyEnvString(usedFlags, "notion-title-property", &cfg.NotionTitleProperty, "NOTION_TITLE_PROPERTY")
}

func applyEnvString(usedFlags map[string]struct{}, flagName string, dst *string, envKeys ...string) {
	if dst == nil || flagUsed(usedFlags, flagName) {
		return
	}
	for _, key := range envKeys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
			return
		}
	}
}

func ensureBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultBaseURL
	}
	if parsed, err := url.Parse(raw); err != nil || !parsed.IsAbs() {
		fmt.Fprintf(os.Stderr, "警告: base-url %q 无效, 使用默认地址\n", raw)
		return defaultBaseURL
	}
	return raw
}

func normalizeExportTarget(target string) string {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case exportTargetAnytype:
		return exportTargetAnytype
	case exportTargetNotion:
		return exportTargetNotion
	default:
		return exportTargetLocal
	}
}

func clampPageSize(size int) int {
	if size < 1 {
		return defaultPageSize
	}
	if size > 100 {
		return 100
	}
	return size
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
