// Package ecstest provides an in-process fake of the ECS management API and
// its S3 data endpoint for tests.
//
// The fake keeps retention classes and buckets in memory, rejects duplicates
// the way ECS does and records every request it receives.
package ecstest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const authTokenHeader = "X-SDS-AUTH-TOKEN"

// Request is one call the fake received.
type Request struct {
	Method string
	Path   string
}

// Bucket as stored by the fake.
type Bucket struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Owner     string `json:"owner,omitempty"`
	VPool     string `json:"vpool,omitempty"`
}

type Server struct {
	// Management API, served over TLS with a self-signed certificate
	*httptest.Server
	// S3 data endpoint, plain HTTP
	S3 *httptest.Server

	username   string
	password   string
	omitToken  bool
	vpools     []string
	tokenCount int

	m         sync.Mutex
	tokens    map[string]bool
	retention map[string]map[string]int64
	buckets   []Bucket
	requests  []Request
}

type Option func(*Server)

// WithCredentials sets the accepted login. Defaults to root/ChangeMe.
func WithCredentials(username, password string) Option {
	return func(s *Server) {
		s.username = username
		s.password = password
	}
}

// WithVPools sets the replication groups the fake lists, in order.
func WithVPools(names ...string) Option {
	return func(s *Server) { s.vpools = names }
}

// WithoutToken makes successful logins answer without a token header.
func WithoutToken() Option {
	return func(s *Server) { s.omitToken = true }
}

// NewServer starts a fake. Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		username:  "root",
		password:  "ChangeMe",
		vpools:    []string{"rg1"},
		tokens:    make(map[string]bool),
		retention: make(map[string]map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewTLSServer(s.createAPIRouter())
	s.S3 = httptest.NewServer(s.createS3Router())
	return s
}

func (s *Server) Close() {
	s.Server.Close()
	s.S3.Close()
}

// Host is the management address without scheme, as given on the command line.
func (s *Server) Host() string {
	return strings.TrimPrefix(s.URL, "https://")
}

// Requests returns every call received so far.
func (s *Server) Requests() []Request {
	s.m.Lock()
	defer s.m.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests counts calls with the given method, any path.
func (s *Server) CountRequests(method string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

// RetentionClasses returns the classes of a namespace by name.
func (s *Server) RetentionClasses(namespace string) map[string]int64 {
	s.m.Lock()
	defer s.m.Unlock()
	out := make(map[string]int64)
	for name, period := range s.retention[namespace] {
		out[name] = period
	}
	return out
}

// Buckets returns the buckets in creation order.
func (s *Server) Buckets() []Bucket {
	s.m.Lock()
	defer s.m.Unlock()
	return append([]Bucket(nil), s.buckets...)
}

// AddBucket seeds a bucket, e.g. to provoke a duplicate.
func (s *Server) AddBucket(b Bucket) {
	s.m.Lock()
	defer s.m.Unlock()
	s.buckets = append(s.buckets, b)
}

func (s *Server) findBucket(name string) (Bucket, bool) {
	for _, b := range s.buckets {
		if b.Name == name {
			return b, true
		}
	}
	return Bucket{}, false
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.m.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path})
		s.m.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.m.Lock()
		ok := s.tokens[r.Header.Get(authTokenHeader)]
		s.m.Unlock()
		if !ok {
			render.Render(w, r, &errResponse{
				HTTPStatusCode: http.StatusUnauthorized,
				Code:           1011,
				Description:    "Authentication required",
				Details:        "Authentication required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) createAPIRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.username || pass != s.password {
			render.Render(w, r, &errResponse{
				HTTPStatusCode: http.StatusUnauthorized,
				Code:           1011,
				Description:    "Invalid username or password",
				Details:        "Invalid username or password",
			})
			return
		}

		s.m.Lock()
		s.tokenCount++
		token := fmt.Sprintf("BAAcToken%d", s.tokenCount)
		s.tokens[token] = true
		s.m.Unlock()

		if !s.omitToken {
			w.Header().Set(authTokenHeader, token)
		}
		render.JSON(w, r, map[string]string{"user": user})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)

		r.Get("/logout", func(w http.ResponseWriter, r *http.Request) {
			s.m.Lock()
			delete(s.tokens, r.Header.Get(authTokenHeader))
			s.m.Unlock()
			render.JSON(w, r, map[string]string{"user": s.username})
		})

		r.Get("/vdc/data-service/vpools", func(w http.ResponseWriter, r *http.Request) {
			type vpool struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			}
			pools := []vpool{}
			for _, name := range s.vpools {
				pools = append(pools, vpool{
					ID:   "urn:storageos:ReplicationGroupInfo:" + name + ":global",
					Name: name,
				})
			}
			render.JSON(w, r, map[string]interface{}{"data_service_vpool": pools})
		})

		r.Post("/object/namespaces/namespace/{namespace}/retention", s.handleCreateRetention)
		r.Post("/object/bucket", s.handleCreateBucket)
	})

	return r
}

func (s *Server) handleCreateRetention(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")

	var req struct {
		Name   string `json:"name"`
		Period int64  `json:"period"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil || req.Name == "" {
		render.Render(w, r, badRequest("Invalid retention class request"))
		return
	}

	s.m.Lock()
	defer s.m.Unlock()
	classes, ok := s.retention[namespace]
	if !ok {
		classes = make(map[string]int64)
		s.retention[namespace] = classes
	}
	if _, exists := classes[req.Name]; exists {
		render.Render(w, r, &errResponse{
			HTTPStatusCode: http.StatusBadRequest,
			Code:           1004,
			Description:    "Error creating retention class",
			Details:        fmt.Sprintf("Retention class %s already exists in namespace %s", req.Name, namespace),
		})
		return
	}
	classes[req.Name] = req.Period
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	var b Bucket
	if err := render.DecodeJSON(r.Body, &b); err != nil || b.Name == "" || b.Namespace == "" {
		render.Render(w, r, badRequest("Invalid bucket request"))
		return
	}

	s.m.Lock()
	defer s.m.Unlock()
	if _, exists := s.findBucket(b.Name); exists {
		msg := fmt.Sprintf("Bucket %s already exists", b.Name)
		render.Render(w, r, &errResponse{
			HTTPStatusCode: http.StatusBadRequest,
			Code:           1005,
			Description:    msg,
			Details:        msg,
		})
		return
	}
	s.buckets = append(s.buckets, b)
	render.JSON(w, r, map[string]string{"name": b.Name, "id": b.Namespace + "." + b.Name})
}

// The S3 endpoint only answers HEAD bucket.
func (s *Server) createS3Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Head("/{bucket}", func(w http.ResponseWriter, r *http.Request) {
		s.m.Lock()
		_, exists := s.findBucket(chi.URLParam(r, "bucket"))
		s.m.Unlock()
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}

type errResponse struct {
	HTTPStatusCode int    `json:"-"`
	Code           int    `json:"code"`
	Description    string `json:"description"`
	Details        string `json:"details"`
	Retryable      bool   `json:"retryable"`
}

func (e *errResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func badRequest(details string) *errResponse {
	return &errResponse{
		HTTPStatusCode: http.StatusBadRequest,
		Code:           1013,
		Description:    "Bad request body",
		Details:        details,
	}
}
