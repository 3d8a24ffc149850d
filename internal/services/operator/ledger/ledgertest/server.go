// Package ledgertest runs an in-memory ledger JSON API for tests.
//
// The fake keeps an active contract set, answers queries with exact payload
// field matching, records every submission, and serves the websocket event
// stream with a snapshot replay followed by a live marker. It has no notion
// of choice semantics: exercises are recorded, never applied.
package ledgertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dablchess/operator/internal/services/operator/ledger"
	"github.com/gorilla/websocket"
)

// Submission is one recorded create or exercise request.
type Submission struct {
	Kind       string
	TemplateID string
	ContractID string
	Choice     string
	Argument   map[string]any
	Payload    map[string]any
	CommandID  string
}

// Server is a fake ledger JSON API.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	contracts   []ledger.Contract
	nextID      int
	offset      int
	submissions []Submission
	rejections  map[string]string
	authHeaders []string
	subscribers map[*subscriber]struct{}
	dials       int
}

type subscriber struct {
	templates map[string]struct{}
	out       chan []byte
	conn      *websocket.Conn
	closeOnce sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.out)
	})
}

// NewServer starts a fake ledger; it is closed with t-style Cleanup by the caller.
func NewServer() *Server {
	s := &Server{
		rejections:  make(map[string]string),
		subscribers: make(map[*subscriber]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/query", s.handleQuery)
	mux.HandleFunc("/v1/create", s.handleCreate)
	mux.HandleFunc("/v1/exercise", s.handleExercise)
	mux.HandleFunc("/v1/stream/query", s.handleStream)
	s.Server = httptest.NewServer(mux)
	return s
}

// Close drops every stream and stops the server.
func (s *Server) Close() {
	s.DropStreams()
	s.Server.Close()
}

// Seed adds an active contract without recording a submission and pushes it
// to live streams.
func (s *Server) Seed(templateID string, payload map[string]any) ledger.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(templateID, payload)
}

// Archive removes contractID from the active set and pushes the archival.
func (s *Server) Archive(contractID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, contract := range s.contracts {
		if contract.ContractID != contractID {
			continue
		}
		s.contracts = append(s.contracts[:i], s.contracts[i+1:]...)
		s.offset++
		s.broadcastLocked(contract.TemplateID, ledger.Event{Archived: &ledger.ArchivedContract{
			ContractID: contract.ContractID,
			TemplateID: contract.TemplateID,
		}})
		return
	}
}

// Reject makes every exercise of choice fail with a 409 carrying message.
func (s *Server) Reject(choice, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejections[choice] = message
}

// Submissions returns a copy of the recorded submissions in arrival order.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.submissions...)
}

// Active returns the active contracts of templateID.
func (s *Server) Active(templateID string) []ledger.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchLocked(templateID, nil)
}

// AuthHeaders returns the Authorization headers seen on HTTP requests.
func (s *Server) AuthHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.authHeaders...)
}

// Dials reports how many stream connections were accepted.
func (s *Server) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// WaitForSubscribers polls until at least n live streams are registered.
func (s *Server) WaitForSubscribers(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		count := len(s.subscribers)
		s.mu.Unlock()
		if count >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// DropStreams closes every open stream connection.
func (s *Server) DropStreams() {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
		delete(s.subscribers, sub)
	}
	s.mu.Unlock()
	for _, sub := range subs {
		sub.close()
		_ = sub.conn.Close()
	}
}

func (s *Server) addLocked(templateID string, payload map[string]any) ledger.Contract {
	s.nextID++
	contract := ledger.Contract{
		ContractID: "#" + strconv.Itoa(s.nextID) + ":0",
		TemplateID: templateID,
		Payload:    normalize(payload),
	}
	s.contracts = append(s.contracts, contract)
	s.offset++
	s.broadcastLocked(templateID, ledger.Event{Created: &contract})
	return contract
}

func (s *Server) matchLocked(templateID string, filter map[string]any) []ledger.Contract {
	name := ledger.TemplateName(templateID)
	normalized := normalize(filter)
	var out []ledger.Contract
	for _, contract := range s.contracts {
		if ledger.TemplateName(contract.TemplateID) != name {
			continue
		}
		if !matches(contract.Payload, normalized) {
			continue
		}
		out = append(out, contract)
	}
	return out
}

func (s *Server) broadcastLocked(templateID string, event ledger.Event) {
	message, err := json.Marshal(map[string]any{
		"events": []ledger.Event{event},
		"offset": strconv.Itoa(s.offset),
	})
	if err != nil {
		return
	}
	name := ledger.TemplateName(templateID)
	for sub := range s.subscribers {
		if _, ok := sub.templates[name]; !ok {
			continue
		}
		select {
		case sub.out <- message:
		default:
		}
	}
}

func (s *Server) recordAuth(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authHeaders = append(s.authHeaders, r.Header.Get("Authorization"))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.recordAuth(r)
	var req struct {
		TemplateIDs []string       `json:"templateIds"`
		Query       map[string]any `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	var result []ledger.Contract
	for _, templateID := range req.TemplateIDs {
		result = append(result, s.matchLocked(templateID, req.Query)...)
	}
	s.mu.Unlock()
	if result == nil {
		result = []ledger.Contract{}
	}
	writeResult(w, result)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.recordAuth(r)
	var req struct {
		TemplateID string         `json:"templateId"`
		Payload    map[string]any `json:"payload"`
		Meta       struct {
			CommandID string `json:"commandId"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	s.submissions = append(s.submissions, Submission{
		Kind:       "create",
		TemplateID: req.TemplateID,
		Payload:    req.Payload,
		CommandID:  req.Meta.CommandID,
	})
	created := s.addLocked(req.TemplateID, req.Payload)
	s.mu.Unlock()
	writeResult(w, created)
}

func (s *Server) handleExercise(w http.ResponseWriter, r *http.Request) {
	s.recordAuth(r)
	var req struct {
		TemplateID string         `json:"templateId"`
		ContractID string         `json:"contractId"`
		Choice     string         `json:"choice"`
		Argument   map[string]any `json:"argument"`
		Meta       struct {
			CommandID string `json:"commandId"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	s.submissions = append(s.submissions, Submission{
		Kind:       "exercise",
		TemplateID: req.TemplateID,
		ContractID: req.ContractID,
		Choice:     req.Choice,
		Argument:   req.Argument,
		CommandID:  req.Meta.CommandID,
	})
	message, rejected := s.rejections[req.Choice]
	found := false
	for _, contract := range s.contracts {
		if contract.ContractID == req.ContractID {
			found = true
			break
		}
	}
	s.mu.Unlock()

	switch {
	case rejected:
		writeError(w, http.StatusConflict, message)
	case !found:
		writeError(w, http.StatusNotFound, fmt.Sprintf("contract %s is not active", req.ContractID))
	default:
		writeResult(w, ledger.ExerciseResult{ExerciseResult: nil, Events: []ledger.Event{}})
	}
}

var upgrader = websocket.Upgrader{
	Subprotocols: []string{"daml.ws.auth"},
	CheckOrigin:  func(*http.Request) bool { return true },
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	offset, templates, err := readStreamRequest(conn)
	if err != nil {
		_ = conn.Close()
		return
	}

	sub := &subscriber{
		templates: templates,
		out:       make(chan []byte, 256),
		conn:      conn,
	}
	s.mu.Lock()
	s.dials++
	if offset == "" {
		var snapshot []ledger.Event
		for _, contract := range s.contracts {
			if _, ok := templates[ledger.TemplateName(contract.TemplateID)]; !ok {
				continue
			}
			created := contract
			snapshot = append(snapshot, ledger.Event{Created: &created})
		}
		if snapshot == nil {
			snapshot = []ledger.Event{}
		}
		replay, _ := json.Marshal(map[string]any{"events": snapshot})
		sub.out <- replay
		var marker []byte
		if s.offset == 0 {
			marker, _ = json.Marshal(map[string]any{"events": []ledger.Event{}, "offset": nil})
		} else {
			marker, _ = json.Marshal(map[string]any{"events": []ledger.Event{}, "offset": strconv.Itoa(s.offset)})
		}
		sub.out <- marker
	}
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.mu.Lock()
				if _, ok := s.subscribers[sub]; ok {
					delete(s.subscribers, sub)
					sub.close()
				}
				s.mu.Unlock()
				return
			}
		}
	}()

	for message := range sub.out {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
	_ = conn.Close()
}

func readStreamRequest(conn *websocket.Conn) (string, map[string]struct{}, error) {
	var offset string
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return "", nil, err
		}
		trimmed := strings.TrimSpace(string(raw))
		if strings.HasPrefix(trimmed, "{") {
			var msg struct {
				Offset string `json:"offset"`
			}
			if err := json.Unmarshal(raw, &msg); err != nil {
				return "", nil, err
			}
			offset = msg.Offset
			continue
		}
		var queries []struct {
			TemplateIDs []string `json:"templateIds"`
		}
		if err := json.Unmarshal(raw, &queries); err != nil {
			return "", nil, err
		}
		templates := make(map[string]struct{})
		for _, query := range queries {
			for _, templateID := range query.TemplateIDs {
				templates[ledger.TemplateName(templateID)] = struct{}{}
			}
		}
		return offset, templates, nil
	}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": http.StatusOK, "result": result})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "errors": []string{message}})
}

// normalize round-trips v through JSON so stored payloads and filters compare
// with the same number and map types the client sees.
func normalize(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func matches(payload, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := payload[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
