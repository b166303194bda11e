package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// webServer 提供调试工件浏览界面: 按运行时间列出 logs/ 下的调试目录,
// 并直接返回每篇文章的缓存快照与元数据 JSON。
type webServer struct {
	cfg       *cliConfig
	debugRoot string
}

var indexTemplate = template.Must(template.New("index").Parse(indexPageHTML))

const indexPageHTML = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
	<meta charset="utf-8">
	<title>文章迁移 · 调试日志浏览</title>
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<style>
		body { margin: 0; font-family: -apple-system, "PingFang SC", "Microsoft YaHei", sans-serif; background: #f6f7fb; color: #1f2933; }
		header { background: #2f3a4f; color: #fff; padding: 16px 24px; }
		header h1 { margin: 0; font-size: 1.4rem; }
		main { padding: 20px 24px; display: grid; grid-template-columns: 280px 280px 1fr; gap: 18px; }
		section { background: #fff; border-radius: 10px; padding: 14px 16px; box-shadow: 0 6px 18px rgba(15, 23, 42, 0.08); }
		section h2 { margin: 0 0 10px; font-size: 1.05rem; }
		ul { list-style: none; margin: 0; padding: 0; max-height: 70vh; overflow: auto; }
		li { padding: 6px 8px; border-radius: 6px; cursor: pointer; font-size: 0.9rem; word-break: break-all; }
		li:hover { background: #eef2ff; }
		li.active { background: #2563eb; color: #fff; }
		pre { margin: 0; max-height: 70vh; overflow: auto; font-size: 0.82rem; background: #f8fafc; border-radius: 8px; padding: 12px; }
		.links a { margin-right: 12px; font-size: 0.88rem; }
	</style>
</head>
<body>
<header><h1>调试日志浏览 · {{.DebugRoot}}</h1></header>
<main>
	<section><h2>运行</h2><ul id="runs"></ul></section>
	<section><h2>文章</h2><ul id="articles"></ul></section>
	<section>
		<h2>工件</h2>
		<div class="links" id="links"></div>
		<pre id="content">选择一次运行查看调试工件。</pre>
	</section>
</main>
<script>
let currentRun = "";
async function loadRuns() {
	const data = await (await fetch("/api/runs")).json();
	const ul = document.getElementById("runs");
	ul.innerHTML = "";
	for (const run of data.runs) {
		const li = document.createElement("li");
		li.textContent = run;
		li.onclick = () => { selectActive(ul, li); loadArticles(run); };
		ul.appendChild(li);
	}
}
async function loadArticles(run) {
	currentRun = run;
	const data = await (await fetch("/api/runs/" + encodeURIComponent(run))).json();
	const ul = document.getElementById("articles");
	ul.innerHTML = "";
	for (const id of data.articles) {
		const li = document.createElement("li");
		li.textContent = id;
		li.onclick = () => { selectActive(ul, li); loadArtifact(id, "apollo-state.json"); };
		ul.appendChild(li);
	}
}
async function loadArtifact(id, file) {
	const links = document.getElementById("links");
	links.innerHTML = "";
	for (const f of ["apollo-state.json", "meta.json"]) {
		const a = document.createElement("a");
		a.href = "javascript:void(0)";
		a.textContent = f;
		a.onclick = () => loadArtifact(id, f);
		links.appendChild(a);
	}
	const resp = await fetch("/api/runs/" + encodeURIComponent(currentRun) + "/" + encodeURIComponent(id) + "/" + file);
	document.getElementById("content").textContent = resp.ok ? await resp.text() : "加载失败: " + resp.status;
}
function selectActive(ul, li) {
	for (const item of ul.children) item.classList.remove("active");
	li.classList.add("active");
}
loadRuns();
</script>
</body>
</html>`

func runWebServer(ctx context.Context, cfg *cliConfig) error {
	app := &webServer{cfg: cfg, debugRoot: cfg.DebugRoot}
	server := &http.Server{
		Addr:    cfg.ServeAddr,
		Handler: app.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logInfo("调试日志浏览界面已启动, 访问地址: http://%s", cfg.ServeAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *webServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/api/runs", s.handleRunList)
	mux.HandleFunc("/api/runs/", s.handleRunDetail)
	return mux
}

func (s *webServer) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := map[string]string{
		"DebugRoot": s.debugRoot,
	}
	if err := indexTemplate.Execute(w, data); err != nil {
		logInfo("渲染首页失败: %v", err)
	}
}

func (s *webServer) handleRunList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	runs, err := listSubDirs(s.debugRoot)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("读取调试目录失败: %v", err))
		return
	}
	// 最近的运行排前面
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleRunDetail serves /api/runs/<run> (article listing) and
// /api/runs/<run>/<article>/<artifact> (the artifact itself).
func (s *webServer) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	for _, p := range parts {
		if !safePathComponent(p) {
			http.NotFound(w, r)
			return
		}
	}

	switch len(parts) {
	case 1:
		articles, err := listSubDirs(filepath.Join(s.debugRoot, parts[0]))
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("读取运行目录失败: %v", err))
			return
		}
		sort.Strings(articles)
		writeJSON(w, http.StatusOK, map[string]any{"run": parts[0], "articles": articles})
	case 3:
		if parts[2] != "apollo-state.json" && parts[2] != "meta.json" {
			http.NotFound(w, r)
			return
		}
		data, err := os.ReadFile(filepath.Join(s.debugRoot, parts[0], parts[1], parts[2]))
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("读取调试工件失败: %v", err))
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

func safePathComponent(p string) bool {
	if p == "" || p == "." || p == ".." {
		return false
	}
	return !strings.ContainsAny(p, `/\`)
}

func listSubDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logInfo("写入 JSON 响应失败: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
