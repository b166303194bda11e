package main

const (
	defaultBaseURL      = "http://localhost:4000/graphql"
	defaultUserAgent    = "article-migrate/0.1 (+https://github.com/)"
	defaultConfigDBPath = "config/app.db"
	defaultOutputPath   = "output"
	defaultDebugRoot    = "logs"
)

const (
	defaultPageSize    = 20
	defaultMaxArticles = 0
	defaultOffset      = 0
)

const (
	exportTargetLocal   = "local"
	exportTargetAnytype = "anytype"
	exportTargetNotion  = "notion"
)

const (
	defaultAnytypeBaseURL = "http://localhost:31009"
	defaultAnytypeVersion = "2025-05-20"

	defaultNotionBaseURL           = "https://api.notion.com"
	defaultNotionVersion           = "2022-06-28"
	defaultNotionDatabaseTitleProp = "Name"
	defaultNotionPageTitleProp     = "title"
)

const (
	cmsTokenEnvVar       = "CMS_BEARER_TOKEN"
	anytypeTokenEnvVar   = "ANYTYPE_TOKEN"
	notionTokenEnvVar    = "NOTION_TOKEN"
	notionParentIDEnvVar = "NOTION_PARENT_ID"
)
