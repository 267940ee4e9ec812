// Package recordapitest provides an in-memory record store API for tests.
package recordapitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

// Call is one request received by the fake store.
type Call struct {
	Method string
	Path   string // escaped request path
	Header http.Header
	Body   []byte
}

// Gate holds back the response of a single request until released.
type Gate struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

// Arrived is closed once the held request reached the store and captured its
// response.
func (g *Gate) Arrived() <-chan struct{} { return g.arrived }

// Release lets the held response be written.
func (g *Gate) Release() { g.once.Do(func() { close(g.release) }) }

type failure struct {
	status    int
	message   string
	malformed bool
}

// Server mimics the record store: JSON envelopes, lowercase domain
// normalization, overwrite on duplicate domain, insertion-ordered listing.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	records  []dns.Record
	calls    []Call
	failures map[string][]failure
	gates    map[string][]*Gate
}

type envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    []dns.Record `json:"data,omitempty"`
}

// NewServer starts a fake store. Close it when done.
func NewServer() *Server {
	s := &Server{
		failures: map[string][]failure{},
		gates:    map[string][]*Gate{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/records", s.handleList)
	mux.HandleFunc("POST /api/records", s.handleCreate)
	mux.HandleFunc("DELETE /api/records/{domain}", s.handleDelete)
	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// BaseURL is the value to configure as the client's base_url.
func (s *Server) BaseURL() string {
	return s.Server.URL + "/api"
}

// Seed stores records verbatim, bypassing validation and normalization.
func (s *Server) Seed(records ...dns.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// Records returns a copy of the stored records.
func (s *Server) Records() []dns.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dns.Record(nil), s.records...)
}

// Calls returns every request received so far, in order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount counts received requests with the given method.
func (s *Server) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// FailNext makes the next request for op answer {success:false, message}
// with the given HTTP status.
func (s *Server) FailNext(op string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], failure{status: status, message: message})
}

// BreakNext makes the next request for op answer with a truncated JSON body.
func (s *Server) BreakNext(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], failure{status: http.StatusOK, malformed: true})
}

// Hold queues a gate for the next request of op. The response body is
// computed when the request arrives and written only after Release.
func (s *Server) Hold(op string) *Gate {
	g := &Gate{arrived: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[op] = append(s.gates[op], g)
	return g
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.EscapedPath(), Header: r.Header.Clone(), Body: body})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// takeFailure pops the queued failure for op, if any. Caller holds s.mu.
func (s *Server) takeFailure(op string) (failure, bool) {
	queue := s.failures[op]
	if len(queue) == 0 {
		return failure{}, false
	}
	s.failures[op] = queue[1:]
	return queue[0], true
}

// takeGate pops the queued gate for op, if any. Caller holds s.mu.
func (s *Server) takeGate(op string) *Gate {
	queue := s.gates[op]
	if len(queue) == 0 {
		return nil
	}
	s.gates[op] = queue[1:]
	return queue[0]
}

// respond writes env after the gate (if any) opens.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, gate *Gate, status int, env envelope) {
	if gate != nil {
		close(gate.arrived)
		select {
		case <-gate.release:
		case <-r.Context().Done():
			return
		}
	}
	writeJSON(w, status, env)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.takeGate(dns.OpList)
	f, failed := s.takeFailure(dns.OpList)
	data := append([]dns.Record{}, s.records...)
	s.mu.Unlock()

	if failed {
		s.writeFailure(w, r, gate, f)
		return
	}
	s.respond(w, r, gate, http.StatusOK, envelope{Success: true, Data: data})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.takeGate(dns.OpCreate)
	f, failed := s.takeFailure(dns.OpCreate)
	s.mu.Unlock()

	if failed {
		s.writeFailure(w, r, gate, f)
		return
	}

	var rec dns.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.respond(w, r, gate, http.StatusBadRequest, envelope{Message: "Invalid JSON format: " + err.Error()})
		return
	}

	rec.Domain = strings.ToLower(strings.TrimSpace(rec.Domain))
	rec.IP = strings.TrimSpace(rec.IP)
	if msgs := validation.IsDNS1123Subdomain(rec.Domain); len(msgs) > 0 {
		s.respond(w, r, gate, http.StatusBadRequest, envelope{Message: "Invalid domain name"})
		return
	}
	if ip := net.ParseIP(rec.IP); ip == nil {
		s.respond(w, r, gate, http.StatusBadRequest, envelope{Message: "Invalid IP address"})
		return
	}

	s.mu.Lock()
	replaced := false
	for i := range s.records {
		if s.records[i].Domain == rec.Domain {
			s.records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		s.records = append(s.records, rec)
	}
	s.mu.Unlock()

	s.respond(w, r, gate, http.StatusCreated, envelope{Success: true, Message: "DNS record created successfully"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	domain := strings.TrimSpace(r.PathValue("domain"))

	s.mu.Lock()
	gate := s.takeGate(dns.OpDelete)
	f, failed := s.takeFailure(dns.OpDelete)
	s.mu.Unlock()

	if failed {
		s.writeFailure(w, r, gate, f)
		return
	}
	if domain == "" {
		s.respond(w, r, gate, http.StatusBadRequest, envelope{Message: "Domain name is required"})
		return
	}

	s.mu.Lock()
	found := false
	for i := range s.records {
		if s.records[i].Domain == domain {
			s.records = append(s.records[:i], s.records[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		s.respond(w, r, gate, http.StatusNotFound, envelope{Message: "DNS record not found"})
		return
	}
	s.respond(w, r, gate, http.StatusOK, envelope{Success: true, Message: "DNS record deleted successfully"})
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, gate *Gate, f failure) {
	if !f.malformed {
		s.respond(w, r, gate, f.status, envelope{Message: f.message})
		return
	}
	if gate != nil {
		close(gate.arrived)
		<-gate.release
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	fmt.Fprint(w, `{"success": tru`)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
