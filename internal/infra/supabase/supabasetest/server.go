// Package supabasetest runs an in-process stand-in for the parts of
// Supabase the client uses: GoTrue password/refresh grants and PostgREST
// table access with eq filters, ordering and per-user row security.
package supabasetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const AnonKey = "test-anon-key"

type account struct {
	id       string
	email    string
	password string
}

// Server is a fake Supabase project.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	accounts   map[string]account // by email
	access     map[string]string  // access token -> user id
	refresh    map[string]string  // refresh token -> user id
	tables     map[string][]map[string]any
	failWrites bool
	failReads  bool
	requests   []string
}

// New starts the server. Callers close it with Close.
func New() *Server {
	s := &Server{
		accounts: make(map[string]account),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		tables:   make(map[string][]map[string]any),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/", s.handleAuth)
	mux.HandleFunc("/rest/v1/", s.handleRest)
	s.Server = httptest.NewServer(mux)
	return s
}

// AddUser registers a user with a profile row and returns its id.
func (s *Server) AddUser(email, password, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.accounts[email] = account{id: id, email: email, password: password}
	s.tables["profiles"] = append(s.tables["profiles"], map[string]any{
		"id": id, "name": name, "role": "user", "theme": "light",
	})
	return id
}

// DropProfile removes the profile row of a user.
func (s *Server) DropProfile(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables["profiles"] = filterRows(s.tables["profiles"], "id", userID, false)
}

// Seed inserts a row directly, bypassing row security.
func (s *Server) Seed(table string, row map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], row)
}

// Rows returns a copy of a table.
func (s *Server) Rows(table string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.tables[table]))
	copy(out, s.tables[table])
	return out
}

// FailWrites makes POST, PATCH and DELETE on tables answer 503.
func (s *Server) FailWrites(fail bool) {
	s.mu.Lock()
	s.failWrites = fail
	s.mu.Unlock()
}

// FailReads makes GET on tables answer 503.
func (s *Server) FailReads(fail bool) {
	s.mu.Lock()
	s.failReads = fail
	s.mu.Unlock()
}

// ExpireAccessTokens invalidates every access token; refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.access = make(map[string]string)
	s.mu.Unlock()
}

// Requests lists "METHOD path" of every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	if r.Header.Get("apikey") != AnonKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid api key"})
		return
	}

	switch strings.TrimPrefix(r.URL.Path, "/auth/v1/") {
	case "token":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		var userID string
		switch r.URL.Query().Get("grant_type") {
		case "password":
			acc, ok := s.accounts[body["email"]]
			if !ok || acc.password != body["password"] {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
				return
			}
			userID = acc.id
		case "refresh_token":
			id, ok := s.refresh[body["refresh_token"]]
			if !ok {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
				return
			}
			delete(s.refresh, body["refresh_token"])
			userID = id
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
			return
		}

		access, refresh := uuid.NewString(), uuid.NewString()
		s.access[access] = userID
		s.refresh[refresh] = userID
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  access,
			"token_type":    "bearer",
			"expires_in":    3600,
			"refresh_token": refresh,
			"user":          map[string]string{"id": userID, "email": s.emailOf(userID)},
		})

	case "user":
		userID, ok := s.userOf(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": userID, "email": s.emailOf(userID)})

	case "logout":
		if _, ok := s.userOf(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid JWT"})
			return
		}
		delete(s.access, bearer(r))
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleRest(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	userID, ok := s.userOf(r)
	if r.Header.Get("apikey") != AnonKey || !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "JWT expired"})
		return
	}

	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	owner := "user_id"
	if table == "profiles" {
		owner = "id"
	}

	if r.Method != http.MethodGet && s.failWrites || r.Method == http.MethodGet && s.failReads {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "unavailable"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		rows := s.visible(table, owner, userID, r)
		if order := r.URL.Query().Get("order"); order != "" {
			col, dir, _ := strings.Cut(order, ".")
			sort.SliceStable(rows, func(i, j int) bool {
				a, b := fmt.Sprint(rows[i][col]), fmt.Sprint(rows[j][col])
				if dir == "desc" {
					return a > b
				}
				return a < b
			})
		}
		writeJSON(w, http.StatusOK, rows)

	case http.MethodPost:
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		if fmt.Sprint(row[owner]) != userID {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "row-level security violation"})
			return
		}
		if _, ok := row["id"]; !ok || row["id"] == "" {
			row["id"] = uuid.NewString()
		}
		s.tables[table] = append(s.tables[table], row)
		w.WriteHeader(http.StatusCreated)

	case http.MethodPatch:
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		for _, row := range s.tables[table] {
			if fmt.Sprint(row[owner]) == userID && matches(row, r) {
				for k, v := range patch {
					row[k] = v
				}
			}
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		kept := s.tables[table][:0:0]
		for _, row := range s.tables[table] {
			if fmt.Sprint(row[owner]) == userID && matches(row, r) {
				continue
			}
			kept = append(kept, row)
		}
		s.tables[table] = kept
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) visible(table, owner, userID string, r *http.Request) []map[string]any {
	var out []map[string]any
	for _, row := range s.tables[table] {
		if fmt.Sprint(row[owner]) == userID && matches(row, r) {
			out = append(out, row)
		}
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out
}

// matches applies every col=eq.value filter of the query string.
func matches(row map[string]any, r *http.Request) bool {
	for col, vals := range r.URL.Query() {
		for _, v := range vals {
			want, ok := strings.CutPrefix(v, "eq.")
			if !ok {
				continue
			}
			if fmt.Sprint(row[col]) != want {
				return false
			}
		}
	}
	return true
}

func filterRows(rows []map[string]any, col, val string, keep bool) []map[string]any {
	out := rows[:0:0]
	for _, row := range rows {
		if (fmt.Sprint(row[col]) == val) == keep {
			out = append(out, row)
		}
	}
	return out
}

func (s *Server) userOf(r *http.Request) (string, bool) {
	id, ok := s.access[bearer(r)]
	return id, ok
}

func (s *Server) emailOf(userID string) string {
	for _, a := range s.accounts {
		if a.id == userID {
			return a.email
		}
	}
	return ""
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
