// Package drivetest provides a fake Google Drive API server for tests.
// It implements just enough of the Files surface for the export
// pipeline: list-by-query, get, create (plain and multipart), media
// update, export-as-PDF and delete.
package drivetest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"

	"google.golang.org/api/option"
)

// File is one stored fake Drive file.
type File struct {
	ID       string
	Name     string
	MimeType string
	Parents  []string
	Trashed  bool
	Content  []byte
}

// Server is an in-memory fake of the Drive v3 REST surface.
type Server struct {
	mu     sync.Mutex
	srv    *httptest.Server
	files  map[string]*File
	nextID int

	// Deleted records ids removed via DELETE, in order.
	Deleted []string

	// FailExport makes the export endpoint return HTTP 500.
	FailExport bool

	// ExportBody is the raw error body returned when FailExport is set.
	ExportBody string
}

// NewServer starts the fake server.
func NewServer() *Server {
	s := &Server{
		files:      make(map[string]*File),
		ExportBody: `{"error":{"code":500,"message":"export backend unavailable"}}`,
	}
	s.srv = httptest.NewServer(s)
	return s
}

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// ClientOptions returns the options that point a drive client at this
// fake server.
func (s *Server) ClientOptions() []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(s.srv.URL),
		option.WithHTTPClient(s.srv.Client()),
	}
}

// AddFile seeds a file and returns its id.
func (s *Server) AddFile(f File) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		s.nextID++
		f.ID = fmt.Sprintf("file-%d", s.nextID)
	}
	cp := f
	s.files[f.ID] = &cp
	return f.ID
}

// GetFile returns a copy of a stored file.
func (s *Server) GetFile(id string) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return File{}, false
	}
	return *f, true
}

// Trash marks a stored file as trashed.
func (s *Server) Trash(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[id]; ok {
		f.Trashed = true
	}
}

// Remove deletes a stored file out-of-band (no Deleted record).
func (s *Server) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
}

// FileCount returns the number of stored files.
func (s *Server) FileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// FindByName returns the first stored file with the given name.
func (s *Server) FindByName(name string) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if f.Name == name {
			return *f, true
		}
	}
	return File{}, false
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	// Media uploads go to the separate upload endpoint; fold both
	// shapes onto the same handlers.
	path = strings.TrimPrefix(path, "upload/")
	path = strings.TrimPrefix(path, "drive/v3/")
	switch {
	case path == "files" && r.Method == http.MethodGet:
		s.handleList(w, r)
	case path == "files" && r.Method == http.MethodPost:
		s.handleCreate(w, r)
	case strings.HasPrefix(path, "files/"):
		rest := strings.TrimPrefix(path, "files/")
		if id, ok := strings.CutSuffix(rest, "/export"); ok {
			s.handleExport(w, r, id)
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.handleGet(w, r, rest)
		case http.MethodPatch, http.MethodPut:
			s.handleUpdate(w, r, rest)
		case http.MethodDelete:
			s.handleDelete(w, r, rest)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

var (
	qNameRe   = regexp.MustCompile(`name = '([^']*)'`)
	qParentRe = regexp.MustCompile(`'([^']*)' in parents`)
	qMimeRe   = regexp.MustCompile(`mimeType = '([^']*)'`)
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	var name, parent, mimeType string
	if m := qNameRe.FindStringSubmatch(q); m != nil {
		name = m[1]
	}
	if m := qParentRe.FindStringSubmatch(q); m != nil {
		parent = m[1]
	}
	if m := qMimeRe.FindStringSubmatch(q); m != nil {
		mimeType = m[1]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches := []map[string]any{}
	for _, f := range s.files {
		if f.Trashed {
			continue
		}
		if name != "" && f.Name != name {
			continue
		}
		if mimeType != "" && f.MimeType != mimeType {
			continue
		}
		if parent != "" && !hasParent(f, parent) {
			continue
		}
		matches = append(matches, map[string]any{"id": f.ID, "name": f.Name, "mimeType": f.MimeType})
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": matches})
}

func hasParent(f *File, parent string) bool {
	for _, p := range f.Parents {
		if p == parent {
			return true
		}
	}
	return false
}

// parseBody handles both plain JSON metadata bodies and
// multipart/related upload bodies (metadata part + media part).
func parseBody(r *http.Request) (meta map[string]any, media []byte, err error) {
	ct := r.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, nil, err
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		meta = map[string]any{}
		if derr := json.NewDecoder(r.Body).Decode(&meta); derr != nil && derr != io.EOF {
			return nil, nil, derr
		}
		return meta, nil, nil
	}

	mr := multipart.NewReader(r.Body, params["boundary"])
	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil {
			return nil, nil, perr
		}
		data, rerr := io.ReadAll(part)
		if rerr != nil {
			return nil, nil, rerr
		}
		if strings.HasPrefix(part.Header.Get("Content-Type"), "application/json") && meta == nil {
			meta = map[string]any{}
			if jerr := json.Unmarshal(data, &meta); jerr != nil {
				return nil, nil, jerr
			}
		} else {
			media = data
		}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta, media, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	meta, media, err := parseBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.nextID++
	f := &File{
		ID:      fmt.Sprintf("file-%d", s.nextID),
		Content: media,
	}
	if v, ok := meta["name"].(string); ok {
		f.Name = v
	}
	if v, ok := meta["mimeType"].(string); ok {
		f.MimeType = v
	}
	if parents, ok := meta["parents"].([]any); ok {
		for _, p := range parents {
			if ps, ok := p.(string); ok {
				f.Parents = append(f.Parents, ps)
			}
		}
	}
	s.files[f.ID] = f
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"id": f.ID, "name": f.Name, "mimeType": f.MimeType})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	f, ok := s.files[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("file %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id": f.ID, "name": f.Name, "mimeType": f.MimeType, "trashed": f.Trashed,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	meta, media, err := parseBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("file %s not found", id))
		return
	}
	if v, ok := meta["name"].(string); ok && v != "" {
		f.Name = v
	}
	if media != nil {
		f.Content = media
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": f.ID, "name": f.Name})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	f, ok := s.files[id]
	fail := s.FailExport
	body := s.ExportBody
	s.mu.Unlock()

	if fail {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, body)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("file %s not found", id))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(append([]byte("%PDF-fake\n"), f.Content...))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	_, ok := s.files[id]
	if ok {
		delete(s.files, id)
		s.Deleted = append(s.Deleted, id)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("file %s not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}
