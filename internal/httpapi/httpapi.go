// Package httpapi implements the admin HTTP surface: a paginated HTML
// message list, a per-message file download, a delete action, the
// Prometheus /metrics endpoint, and a static OpenAPI document.
package httpapi

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logging "gopkg.in/op/go-logging.v1"

	"github.com/parcelnet/parcel/internal/metrics"
	"github.com/parcelnet/parcel/internal/store"
)

// defaultLimit is the page size when no limit query param is given.
const defaultLimit = 20

// Server wires the repository and transfer root into a *http.ServeMux:
// GET /, GET /download/{id}, POST /delete, /metrics, /openapi.json.
type Server struct {
	repo    *store.Repository
	root    string
	metrics *metrics.Metrics
	log     *logging.Logger
	tmpl    *template.Template
}

// New builds a Server. root is the same filesystem root the message
// executor writes into (internal/exec's Executor root), so downloads can
// resolve a stored filepath.
func New(repo *store.Repository, root string, m *metrics.Metrics, log *logging.Logger) *Server {
	return &Server{
		repo:    repo,
		root:    root,
		metrics: m,
		log:     log,
		tmpl:    template.Must(template.New("index").Parse(indexTemplate)),
	}
}

// Handler returns the admin HTTP surface as a single http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.instrument("/", s.handleIndex))
	mux.HandleFunc("/download/", s.instrument("/download", s.handleDownload))
	mux.HandleFunc("/delete", s.instrument("/delete", s.handleDelete))
	mux.HandleFunc("/openapi.json", s.instrument("/openapi.json", s.handleOpenAPI))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// instrument wraps h so every request increments
// parcel_http_requests_total labeled by route and status class.
func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, statusClass(rec.status)).Inc()
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// searchParams are the list view's query parameters.
type searchParams struct {
	Username string
	Limit    int
	Offset   int
}

func parseSearchParams(r *http.Request) searchParams {
	q := r.URL.Query()

	limit := defaultLimit
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}

	offset := 0
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		offset = v
	}

	return searchParams{Username: q.Get("username"), Limit: limit, Offset: offset}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := parseSearchParams(r)

	messages, err := s.repo.GetMessages(r.Context(), params.Username, params.Offset, params.Limit)
	if err != nil {
		s.log.Errorf("get messages: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := struct {
		Messages []store.FullMessage
		Query    searchParams
	}{Messages: messages, Query: params}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.log.Errorf("render index: %v", err)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := r.URL.Path[len("/download/"):]
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}

	msg, err := s.repo.GetMessageByPublicID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "message doesn't exist", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Errorf("get message %s: %v", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if msg.File == nil {
		http.Error(w, "no file attached to this message", http.StatusNotFound)
		return
	}

	path := filepath.Join(s.root, msg.File.Filepath)
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "file not found or not accessible", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, msg.File.Filename))
	w.Header().Set("X-HASH", "sha256:"+msg.File.Hash)
	http.ServeContent(w, r, msg.File.Filename, msg.Timestamp, f)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	// The form carries either an id or a username, whichever field the
	// delete button submitted.
	if idStr := r.FormValue("id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "invalid message id", http.StatusBadRequest)
			return
		}
		if err := s.repo.DeleteByIDs(r.Context(), []uuid.UUID{id}); err != nil {
			s.log.Errorf("delete %s: %v", id, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	} else if username := r.FormValue("username"); username != "" {
		if err := s.repo.DeleteByUsername(r.Context(), username); err != nil {
			s.log.Errorf("delete by username %s: %v", username, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	} else {
		http.Error(w, "id or username required", http.StatusBadRequest)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleOpenAPI serves a small static OpenAPI document describing the
// admin routes.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, openAPIDocument)
}

const openAPIDocument = `{
  "openapi": "3.0.0",
  "info": {"title": "parcel admin API", "version": "1.0.0"},
  "paths": {
    "/": {"get": {"operationId": "get_messages", "summary": "List messages"}},
    "/download/{id}": {"get": {"operationId": "download", "summary": "Download message file"}},
    "/delete": {"post": {"operationId": "delete_messages", "summary": "Delete messages"}}
  }
}`

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>Messages</title>
	<style>
		table { width: 100%; border-collapse: collapse; }
		th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
		th { background-color: #f2f2f2; }
		.hash { font-family: monospace; max-width: 100px; overflow: hidden; text-overflow: ellipsis; }
	</style>
</head>
<body>
	<h1>Messages ({{ len .Messages }})</h1>
	<a href="/openapi.json">API documentation</a>
	<form action="/" method="get">
		<label for="username">Username:</label>
		<input type="text" id="username" name="username" value="{{ .Query.Username }}">
		<label for="limit">Limit:</label>
		<input type="number" id="limit" name="limit" min="1" value="{{ .Query.Limit }}">
		<label for="offset">Offset:</label>
		<input type="number" id="offset" name="offset" min="0" value="{{ .Query.Offset }}">
		<button type="submit">Search</button>
	</form>
	<table>
		<thead>
			<tr>
				<th>Timestamp</th><th>User</th><th>IP</th><th>Message</th>
				<th>Filename</th><th>Filesize</th><th>Mime</th><th>SHA256</th>
				<th>Filelink</th><th>Actions</th>
			</tr>
		</thead>
		<tbody>
			{{ range .Messages }}
			<tr>
				<td>{{ .Timestamp }}</td>
				<td>{{ .Nickname }}</td>
				<td>{{ .IP }}</td>
				<td>{{ if .Text }}{{ .Text.Text }}{{ end }}</td>
				<td>{{ if .File }}{{ .File.Filename }}{{ end }}</td>
				<td>{{ if .File }}{{ .File.Length }}{{ end }}</td>
				<td>{{ if .File }}{{ .File.Mime }}{{ end }}</td>
				<td class="hash">{{ if .File }}{{ .File.Hash }}{{ end }}</td>
				<td>{{ if .File }}<a href="/download/{{ .PublicID }}" target="_blank">Download</a>{{ end }}</td>
				<td>
					<form action="/delete" method="post">
						<input type="hidden" name="id" value="{{ .PublicID }}">
						<button type="submit">Delete</button>
					</form>
				</td>
			</tr>
			{{ end }}
		</tbody>
	</table>
</body>
</html>`
