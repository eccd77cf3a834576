package mock

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"
)

// Document is something the fake registry serves: a manifest or a
// blob.
type Document struct {
	MediaType string
	Body      []byte
}

// Registry is an in-memory registry speaking enough of the v2 API
// for tests. If Username is set, every request needs matching basic
// auth.
type Registry struct {
	Username, Password string

	mu           sync.Mutex
	repositories []string
	tags         map[string][]string
	manifests    map[string]Document
	blobs        map[string]Document
	failures     map[string]int
	requests     []string
	deleted      []string
}

func NewRegistry() *Registry {
	return &Registry{
		tags:      map[string][]string{},
		manifests: map[string]Document{},
		blobs:     map[string]Document{},
		failures:  map[string]int{},
	}
}

// Server starts an httptest server for the registry; close it when
// done.
func (r *Registry) Server() *httptest.Server {
	return httptest.NewServer(r)
}

func (r *Registry) AddRepositories(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repositories = append(r.repositories, names...)
}

func (r *Registry) SetTags(repository string, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[repository] = tags
}

// AddManifest stores v as a manifest, reachable by each given
// reference and by its digest, which it returns.
func (r *Registry) AddManifest(repository, mediaType string, v interface{}, refs ...string) string {
	body := mustJSON(v)
	d := digest.FromBytes(body).String()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range append(refs, d) {
		r.manifests[repository+"@"+ref] = Document{MediaType: mediaType, Body: body}
	}
	return d
}

// AddBlob stores v (marshalled as JSON, unless it is []byte) as a
// blob and returns its digest.
func (r *Registry) AddBlob(v interface{}) string {
	body, ok := v.([]byte)
	if !ok {
		body = mustJSON(v)
	}
	d := digest.FromBytes(body).String()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[d] = Document{MediaType: "application/octet-stream", Body: body}
	return d
}

// Fail makes requests whose path is exactly path answer status.
func (r *Registry) Fail(path string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[path] = status
}

// Requests returns "METHOD path?query" for every request served.
func (r *Registry) Requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

// Count is the number of requests whose "METHOD path" starts with
// prefix.
func (r *Registry) Count(prefix string) int {
	n := 0
	for _, req := range r.Requests() {
		if strings.HasPrefix(req, prefix) {
			n++
		}
	}
	return n
}

// Deleted lists the "repository@digest" manifests deleted so far.
func (r *Registry) Deleted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deleted...)
}

func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := req.Method + " " + req.URL.Path
	if req.URL.RawQuery != "" {
		line += "?" + req.URL.RawQuery
	}
	r.requests = append(r.requests, line)

	if r.Username != "" {
		user, pass, ok := req.BasicAuth()
		if !ok || user != r.Username || pass != r.Password {
			w.Header().Set("Www-Authenticate", `Basic realm="registry"`)
			http.Error(w, `{"errors":[{"code":"UNAUTHORIZED"}]}`, http.StatusUnauthorized)
			return
		}
	}
	if status, ok := r.failures[req.URL.Path]; ok {
		http.Error(w, http.StatusText(status), status)
		return
	}

	path := req.URL.Path
	switch {
	case path == "/v2/" || path == "/v2":
		writeJSON(w, "application/json", struct{}{})
	case path == "/v2/_catalog":
		r.serveCatalog(w, req)
	case strings.HasSuffix(path, "/tags/list"):
		repository := strings.TrimSuffix(strings.TrimPrefix(path, "/v2/"), "/tags/list")
		tags, ok := r.tags[repository]
		if !ok {
			http.NotFound(w, req)
			return
		}
		writeJSON(w, "application/json", map[string]interface{}{"name": repository, "tags": tags})
	case strings.Contains(path, "/manifests/"):
		r.serveManifest(w, req)
	case strings.Contains(path, "/blobs/"):
		r.serveBlob(w, req)
	default:
		http.NotFound(w, req)
	}
}

func (r *Registry) serveCatalog(w http.ResponseWriter, req *http.Request) {
	names := append([]string(nil), r.repositories...)
	sort.Strings(names)
	n, err := strconv.Atoi(req.URL.Query().Get("n"))
	if err != nil || n <= 0 {
		n = len(names)
	}
	start := 0
	if last := req.URL.Query().Get("last"); last != "" {
		start = sort.SearchStrings(names, last)
		if start < len(names) && names[start] == last {
			start++
		}
	}
	end := start + n
	if end > len(names) {
		end = len(names)
	}
	page := []string{}
	if start < end {
		page = names[start:end]
	}
	writeJSON(w, "application/json", map[string][]string{"repositories": page})
}

func split(path, marker string) (string, string) {
	parts := strings.SplitN(strings.TrimPrefix(path, "/v2/"), marker, 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

func (r *Registry) serveManifest(w http.ResponseWriter, req *http.Request) {
	repository, ref := split(req.URL.Path, "/manifests/")
	doc, ok := r.manifests[repository+"@"+ref]
	if !ok {
		http.NotFound(w, req)
		return
	}
	d := digest.FromBytes(doc.Body).String()
	switch req.Method {
	case http.MethodDelete:
		for k, v := range r.manifests {
			if strings.HasPrefix(k, repository+"@") && digest.FromBytes(v.Body).String() == d {
				delete(r.manifests, k)
			}
		}
		r.deleted = append(r.deleted, repository+"@"+ref)
		w.WriteHeader(http.StatusAccepted)
	default:
		w.Header().Set("Docker-Content-Digest", d)
		w.Header().Set("Content-Type", doc.MediaType)
		w.Write(doc.Body)
	}
}

func (r *Registry) serveBlob(w http.ResponseWriter, req *http.Request) {
	_, d := split(req.URL.Path, "/blobs/")
	doc, ok := r.blobs[d]
	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Docker-Content-Digest", d)
	w.Header().Set("Content-Type", doc.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
	if req.Method == http.MethodHead {
		return
	}
	w.Write(doc.Body)
}

func writeJSON(w http.ResponseWriter, mediaType string, v interface{}) {
	w.Header().Set("Content-Type", mediaType)
	w.Write(mustJSON(v))
}

func mustJSON(v interface{}) []byte {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bytes
}
