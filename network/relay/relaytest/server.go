// Package relaytest provides an in-process session coordination server for
// tests of the relay client and of the workflows built on it.
package relaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/onflow/flow-tss/model/messages"
	"github.com/onflow/flow-tss/model/tss"
	"github.com/onflow/flow-tss/network/relay"
)

const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInvalidRequest = -32600
)

type peer struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (p *peer) write(v interface{}) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.ws.WriteJSON(v)
}

type group struct {
	tss.Group
	members map[*peer]struct{}
}

type session struct {
	tss.Session
	params  tss.Parameters
	parties map[*peer]uint16
}

// Server is a minimal session coordination server. Signup numbers are
// assigned in order of arrival; protocol messages are relayed to all other
// parties of a session, or to the party whose signup number is the receiver.
type Server struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader
	server   *httptest.Server

	mu            sync.Mutex
	peers         map[*peer]struct{}
	groups        map[string]*group
	sessions      map[string]*session
	notifications []relay.Request
	relayed       int
}

func NewServer(log zerolog.Logger) *Server {
	s := &Server{
		log:      log.With().Str("component", "relay_test_server").Logger(),
		peers:    make(map[*peer]struct{}),
		groups:   make(map[string]*group),
		sessions: make(map[string]*session),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// URL returns the websocket endpoint of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

// Config returns a relay client configuration for the server.
func (s *Server) Config() relay.Config {
	config := relay.DefaultConfig()
	config.URL = s.URL()
	config.MaxRequestsPerSecond = 0
	return config
}

// Close drops all client connections and stops the server.
func (s *Server) Close() {
	s.mu.Lock()
	for p := range s.peers {
		_ = p.ws.Close()
	}
	s.mu.Unlock()
	s.server.Close()
}

// Notifications returns the notifications received so far.
func (s *Server) Notifications() []relay.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]relay.Request(nil), s.notifications...)
}

// Relayed returns the number of protocol messages relayed so far.
func (s *Server) Relayed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relayed
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("could not upgrade connection")
		return
	}
	p := &peer{ws: ws}
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		var request relay.Request
		err := ws.ReadJSON(&request)
		if err != nil {
			s.log.Debug().Err(err).Msg("connection closed")
			return
		}

		result, rpcErr := s.handle(p, &request)
		if request.ID == nil {
			continue
		}

		response := relay.Response{JSONRPC: "2.0", ID: request.ID, Error: rpcErr}
		if rpcErr == nil {
			response.Result, err = json.Marshal(result)
			if err != nil {
				response.Error = &relay.RPCError{Code: codeInvalidRequest, Message: err.Error()}
			}
		}
		err = p.write(response)
		if err != nil {
			return
		}
	}
}

func (s *Server) handle(p *peer, request *relay.Request) (interface{}, *relay.RPCError) {
	var params []json.RawMessage
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil && !strings.HasPrefix(request.Method, "Notify.") {
			return nil, invalidParams(err)
		}
	}

	switch request.Method {
	case relay.MethodGroupCreate:
		var label string
		var tssParams tss.Parameters
		if err := decodeParams(params, &label, &tssParams); err != nil {
			return nil, invalidParams(err)
		}
		if err := tssParams.Validate(); err != nil {
			return nil, invalidParams(err)
		}
		return s.createGroup(p, label, tssParams), nil

	case relay.MethodGroupJoin:
		var groupID string
		if err := decodeParams(params, &groupID); err != nil {
			return nil, invalidParams(err)
		}
		return s.joinGroup(p, groupID)

	case relay.MethodSessionCreate:
		var groupID string
		var kind tss.SessionKind
		if err := decodeParams(params, &groupID, &kind); err != nil {
			return nil, invalidParams(err)
		}
		return s.createSession(groupID, kind)

	case relay.MethodSessionJoin:
		var groupID, sessionID string
		if err := decodeParams(params, &groupID, &sessionID); err != nil {
			return nil, invalidParams(err)
		}
		return s.session(groupID, sessionID)

	case relay.MethodSessionSignup:
		var groupID, sessionID string
		if err := decodeParams(params, &groupID, &sessionID); err != nil {
			return nil, invalidParams(err)
		}
		return s.signup(p, groupID, sessionID, tss.SessionKeygen)

	case relay.MethodSessionLoad:
		var groupID, sessionID string
		var index uint16
		if err := decodeParams(params, &groupID, &sessionID, &index); err != nil {
			return nil, invalidParams(err)
		}
		return s.signup(p, groupID, sessionID, tss.SessionSign)

	case relay.MethodSessionMessage:
		var groupID, sessionID string
		var msg messages.Message
		if err := decodeParams(params, &groupID, &sessionID, &msg); err != nil {
			return nil, invalidParams(err)
		}
		return nil, s.relay(p, sessionID, &msg)

	case relay.MethodNotifyAddress:
		var announcement relay.AddressAnnouncement
		if err := json.Unmarshal(request.Params, &announcement); err != nil {
			return nil, invalidParams(err)
		}
		return nil, s.notify(p, request, announcement.GroupID, relay.EventNotifyAddress)

	case relay.MethodNotifyProposal:
		var proposal relay.Proposal
		if err := json.Unmarshal(request.Params, &proposal); err != nil {
			return nil, invalidParams(err)
		}
		return nil, s.notify(p, request, proposal.GroupID, relay.EventNotifyProposal)

	default:
		return nil, &relay.RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %s", request.Method)}
	}
}

func (s *Server) createGroup(p *peer, label string, params tss.Parameters) *tss.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := &group{
		Group:   tss.Group{ID: uuid.New().String(), Label: label, Params: params},
		members: map[*peer]struct{}{p: {}},
	}
	s.groups[g.ID] = g
	return &g.Group
}

func (s *Server) joinGroup(p *peer, groupID string) (*tss.Group, *relay.RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, notFound("group", groupID)
	}
	g.members[p] = struct{}{}
	return &g.Group, nil
}

func (s *Server) createSession(groupID string, kind tss.SessionKind) (*tss.Session, *relay.RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, notFound("group", groupID)
	}
	sess := &session{
		Session: tss.Session{ID: uuid.New().String(), GroupID: groupID, Kind: kind},
		params:  g.Params,
		parties: make(map[*peer]uint16),
	}
	s.sessions[sess.ID] = sess
	return &sess.Session, nil
}

func (s *Server) session(groupID string, sessionID string) (*tss.Session, *relay.RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.GroupID != groupID {
		return nil, notFound("session", sessionID)
	}
	return &sess.Session, nil
}

// signup assigns the next party number. Once the session is full, all its
// parties receive the session's ready event.
func (s *Server) signup(p *peer, groupID string, sessionID string, kind tss.SessionKind) (*tss.PartySignup, *relay.RPCError) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.GroupID != groupID {
		s.mu.Unlock()
		return nil, notFound("session", sessionID)
	}
	if sess.Kind != kind {
		s.mu.Unlock()
		return nil, &relay.RPCError{Code: codeInvalidRequest, Message: fmt.Sprintf("session %s is a %s session", sessionID, sess.Kind)}
	}

	size := int(sess.params.Parties)
	event := relay.EventSessionSignup
	if kind == tss.SessionSign {
		size = int(sess.params.Signers())
		event = relay.EventSessionLoad
	}
	if _, ok := sess.parties[p]; ok {
		s.mu.Unlock()
		return nil, &relay.RPCError{Code: codeInvalidRequest, Message: "already signed up"}
	}
	if len(sess.parties) >= size {
		s.mu.Unlock()
		return nil, &relay.RPCError{Code: codeInvalidRequest, Message: "session is full"}
	}

	number := uint16(len(sess.parties) + 1)
	sess.parties[p] = number
	var ready []*peer
	if len(sess.parties) == size {
		for member := range sess.parties {
			ready = append(ready, member)
		}
	}
	s.mu.Unlock()

	s.emit(ready, event, sessionID)
	return &tss.PartySignup{Number: number, SessionID: sessionID}, nil
}

func (s *Server) relay(p *peer, sessionID string, msg *messages.Message) *relay.RPCError {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return notFound("session", sessionID)
	}
	var targets []*peer
	for member, number := range sess.parties {
		if member == p {
			continue
		}
		if msg.Receiver != nil && *msg.Receiver != number {
			continue
		}
		targets = append(targets, member)
	}
	s.relayed++
	s.mu.Unlock()

	s.emit(targets, relay.EventSessionMessage, msg)
	return nil
}

func (s *Server) notify(p *peer, request *relay.Request, groupID string, event string) *relay.RPCError {
	s.mu.Lock()
	s.notifications = append(s.notifications, *request)
	g, ok := s.groups[groupID]
	var targets []*peer
	if ok {
		for member := range g.members {
			if member != p {
				targets = append(targets, member)
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		return notFound("group", groupID)
	}
	s.emit(targets, event, request.Params)
	return nil
}

func (s *Server) emit(targets []*peer, event string, params interface{}) {
	raw, err := json.Marshal(params)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("could not encode event")
		return
	}
	for _, target := range targets {
		err := target.write(relay.Response{JSONRPC: "2.0", Method: event, Params: raw})
		if err != nil {
			s.log.Debug().Err(err).Str("event", event).Msg("could not deliver event")
		}
	}
}

func decodeParams(params []json.RawMessage, targets ...interface{}) error {
	if len(params) != len(targets) {
		return fmt.Errorf("expected %d params, got %d", len(targets), len(params))
	}
	for i, target := range targets {
		err := json.Unmarshal(params[i], target)
		if err != nil {
			return fmt.Errorf("invalid param %d: %w", i, err)
		}
	}
	return nil
}

func invalidParams(err error) *relay.RPCError {
	return &relay.RPCError{Code: codeInvalidParams, Message: err.Error()}
}

func notFound(kind string, id string) *relay.RPCError {
	return &relay.RPCError{Code: codeInvalidRequest, Message: fmt.Sprintf("unknown %s %s", kind, id)}
}
