// Package cftest provides an in-memory Cloudflare v4 API for tests.
//
// Only the endpoints used for address records are implemented:
// zone lookup by name, record listing, record creation and record update.
package cftest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Record is a DNS record as stored by the fake API.
type Record struct {
	ID      string   `json:"id"`
	ZoneID  string   `json:"zone_id"`
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Content string   `json:"content"`
	TTL     int      `json:"ttl"`
	Proxied bool     `json:"proxied"`
	Comment string   `json:"comment,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Server is a fake Cloudflare API. The zero value is not usable; use New.
type Server struct {
	*httptest.Server

	Email string
	Key   string

	mu      sync.Mutex
	zones   []zone
	records []Record
	nextID  int
	hits    map[string]int
	failFor map[string]int
	bodies  []Record
}

type zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// New starts a fake API that accepts only the given email and key.
func New(email, key string) *Server {
	s := &Server{
		Email:   email,
		Key:     key,
		hits:    make(map[string]int),
		failFor: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// AddZone registers a zone. Adding the same name twice makes lookups ambiguous.
func (s *Server) AddZone(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = append(s.zones, zone{ID: id, Name: name})
}

// AddRecord stores r as if it had been created earlier and returns its id.
func (s *Server) AddRecord(r Record) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = s.newID()
	}
	s.records = append(s.records, r)
	return r.ID
}

// FailWrites makes create and update requests for record name fail with status.
func (s *Server) FailWrites(name string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor[name] = status
}

// Records returns a copy of the stored records.
func (s *Server) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// WriteBodies returns the decoded bodies of every create and update request, in order.
func (s *Server) WriteBodies() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.bodies...)
}

// Hits returns how many requests were made for an operation:
// "zones", "list", "create", "update", or "unauthorized".
func (s *Server) Hits(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[op]
}

// Total returns the number of requests received.
func (s *Server) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}

func (s *Server) newID() string {
	s.nextID++
	return fmt.Sprintf("rec%03d", s.nextID)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Header.Get("X-Auth-Email") != s.Email || r.Header.Get("X-Auth-Key") != s.Key {
		s.hits["unauthorized"]++
		writeError(w, http.StatusForbidden, 9103, "Unknown X-Auth-Key or X-Auth-Email")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "zones" && r.Method == http.MethodGet:
		s.hits["zones"]++
		name := r.URL.Query().Get("name")
		result := []zone{}
		for _, z := range s.zones {
			if z.Name == name {
				result = append(result, z)
			}
		}
		writeList(w, result, len(result))

	case len(parts) == 3 && parts[0] == "zones" && parts[2] == "dns_records" && r.Method == http.MethodGet:
		s.hits["list"]++
		q := r.URL.Query()
		result := []Record{}
		for _, rec := range s.records {
			if rec.ZoneID == parts[1] && rec.Name == q.Get("name") && rec.Type == q.Get("type") {
				result = append(result, rec)
			}
		}
		writeList(w, result, len(result))

	case len(parts) == 3 && parts[0] == "zones" && parts[2] == "dns_records" && r.Method == http.MethodPost:
		s.hits["create"]++
		var rec Record
		if !s.decode(w, r, &rec) {
			return
		}
		rec.ID = s.newID()
		rec.ZoneID = parts[1]
		s.records = append(s.records, rec)
		writeResult(w, rec)

	case len(parts) == 4 && parts[0] == "zones" && parts[2] == "dns_records" &&
		(r.Method == http.MethodPut || r.Method == http.MethodPatch):
		s.hits["update"]++
		var rec Record
		if !s.decode(w, r, &rec) {
			return
		}
		for i := range s.records {
			if s.records[i].ID == parts[3] && s.records[i].ZoneID == parts[1] {
				rec.ID = parts[3]
				rec.ZoneID = parts[1]
				s.records[i] = rec
				writeResult(w, rec)
				return
			}
		}
		writeError(w, http.StatusNotFound, 81044, "Record not found")

	default:
		writeError(w, http.StatusNotFound, 7003, "Could not route to "+r.URL.Path)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, rec *Record) bool {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		writeError(w, http.StatusBadRequest, 6003, "Invalid content type "+ct)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(rec); err != nil {
		writeError(w, http.StatusBadRequest, 9207, "Request body is invalid: "+err.Error())
		return false
	}
	s.bodies = append(s.bodies, *rec)
	if status, ok := s.failFor[rec.Name]; ok {
		writeError(w, status, 1004, "DNS Validation Error")
		return false
	}
	return true
}

type envelope struct {
	Success    bool          `json:"success"`
	Errors     []apiError    `json:"errors"`
	Messages   []interface{} `json:"messages"`
	Result     interface{}   `json:"result"`
	ResultInfo *resultInfo   `json:"result_info,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type resultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	Count      int `json:"count"`
	Total      int `json:"total_count"`
}

func writeList(w http.ResponseWriter, result interface{}, n int) {
	writeJSON(w, http.StatusOK, envelope{
		Success:    true,
		Errors:     []apiError{},
		Messages:   []interface{}{},
		Result:     result,
		ResultInfo: &resultInfo{Page: 1, PerPage: 100, TotalPages: 1, Count: n, Total: n},
	})
}

func writeResult(w http.ResponseWriter, result interface{}) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Errors: []apiError{}, Messages: []interface{}{}, Result: result})
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, envelope{
		Success:  false,
		Errors:   []apiError{{Code: code, Message: msg}},
		Messages: []interface{}{},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
