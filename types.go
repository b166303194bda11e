package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}

	var num float64
	if err := json.Unmarshal(b, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		str = strings.TrimSpace(str)
		if str == "" {
			*f = 0
			return nil
		}
		if parsed, err := strconv.ParseFloat(str, 64); err == nil {
			*f = flexFloat64(parsed)
			return nil
		}
		if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
			*f = flexFloat64(float64(t.UnixNano()) / 1e9)
			return nil
		}
		if t, err := time.Parse(time.RFC3339, str); err == nil {
			*f = flexFloat64(float64(t.UnixNano()) / 1e9)
			return nil
		}
		return fmt.Errorf("无法解析字符串时间戳: %s", str)
	}

	return fmt.Errorf("无法解析数值: %s", s)
}

func (f flexFloat64) Float64() float64 {
	return float64(f)
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type articleListData struct {
	Articles articleConnection `json:"articles"`
}

type articleConnection struct {
	Items   []articleMeta `json:"items"`
	Total   int           `json:"total"`
	HasMore bool          `json:"hasMore"`
}

type articleMeta struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Status      string      `json:"status"`
	CreateTime  flexFloat64 `json:"createdAt"`
	UpdateTime  flexFloat64 `json:"updatedAt"`
	PublishTime flexFloat64 `json:"publishedAt"`
}

type articleDetailData struct {
	Article *articleDetail `json:"article"`
}

type articleDetail struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug"`
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	BodyHTML    string          `json:"bodyHtml"`
	Status      string          `json:"status"`
	Author      *articleAuthor  `json:"author"`
	Tags        []articleTag    `json:"tags"`
	Category    *articleTag     `json:"category"`
	CoverURL    string          `json:"coverUrl"`
	CreateTime  flexFloat64     `json:"createdAt"`
	UpdateTime  flexFloat64     `json:"updatedAt"`
	PublishTime flexFloat64     `json:"publishedAt"`
	Extras      json.RawMessage `json:"extras"`
}

type articleAuthor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type articleTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// articleLogMeta is the shape persisted as the per-article meta.json debug
// artifact.
type articleLogMeta struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Author      string   `json:"author,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	CreateTime  float64  `json:"create_time"`
	UpdateTime  float64  `json:"update_time"`
	PublishTime float64  `json:"publish_time"`
	BodyBytes   int      `json:"body_bytes"`
}

type exportArticle struct {
	ID          string
	Slug        string
	Title       string
	Summary     string
	Body        string
	Author      string
	Category    string
	Tags        []string
	CreateTime  float64
	UpdateTime  float64
	PublishTime float64
}
