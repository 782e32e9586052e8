package rhema

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Server is the daemon actor that owns a session and serves requests
// over a unix socket. All session access goes through the actor
// goroutine, so handlers never race.
type Server struct {
	session  *Session
	requests chan serverRequest
	listener net.Listener

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool

	clients   sync.WaitGroup
	actorDone chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

type serverRequest struct {
	msg      map[string]any
	response chan map[string]any
}

// NewServer opens the store, restores the session, and binds the
// socket from the given config.
func NewServer(cfg *Config) (*Server, error) {
	// Clean up stale socket
	os.Remove(cfg.SocketPath)

	store, err := OpenStore(cfg.StoreBackend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	session, err := NewSession(store, cfg.MaxTraces)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init session: %w", err)
	}

	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}

	return &Server{
		session:   session,
		requests:  make(chan serverRequest, 64),
		listener:  listener,
		conns:     make(map[net.Conn]struct{}),
		actorDone: make(chan struct{}),
	}, nil
}

// Run starts the actor goroutine and accepts connections. Blocks until
// shutdown.
func (s *Server) Run() {
	go s.actorLoop()
	s.acceptClients()
}

func (s *Server) acceptClients() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleClientConnection(conn)
	}
}

// Shutdown cleanly stops a server started with Run: no new
// connections, live connections closed, queued requests drained, then
// the session closed. Safe to call more than once.
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(func() { s.shutdownErr = s.shutdown() })
	return s.shutdownErr
}

func (s *Server) shutdown() error {
	errs := []error{s.listener.Close()}
	s.closeClientConns()
	// Every tracked connection goroutine must return before the
	// request channel closes; a late goroutine never sends on it.
	s.clients.Wait()
	close(s.requests)
	<-s.actorDone
	errs = append(errs, s.session.Close())
	return JoinErrors(errs)
}

// trackConn registers a live connection. Refused once shutdown has
// begun, so a late connection never reaches the actor.
func (s *Server) trackConn(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.clients.Add(1)
	return true
}

func (s *Server) dropConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// closeClientConns stops connection tracking and closes the live
// connections, unblocking their readers.
func (s *Server) closeClientConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for conn := range s.conns {
		conn.Close()
	}
}

// actorLoop is the single goroutine that owns session state.
func (s *Server) actorLoop() {
	defer close(s.actorDone)
	for req := range s.requests {
		req.response <- s.handleRequest(req.msg)
	}
}

// sendToActor sends a request to the actor and waits for the response.
func (s *Server) sendToActor(msg map[string]any) map[string]any {
	resp := make(chan map[string]any, 1)
	s.requests <- serverRequest{msg: msg, response: resp}
	return <-resp
}

func (s *Server) handleRequest(msg map[string]any) map[string]any {
	id, _ := msg["id"].(string)

	op, _ := msg["op"].(string)
	if op == "" {
		// Empty request or no op — return manual
		return s.serverManual(id)
	}

	switch op {
	case "eval":
		return s.handleEval(id, msg)
	case "define":
		return s.handleDefine(id, msg)
	case "delete":
		return s.handleDelete(id, msg)
	case "list":
		return s.handleList(id)
	case "traces":
		return s.handleTraces(id, msg)
	default:
		return errorResponse(id, fmt.Sprintf("unknown op: %s", op))
	}
}

func (s *Server) serverManual(id string) map[string]any {
	return map[string]any{
		"id": id,
		"ok": true,
		"value": map[string]any{
			"name":    "rhema-core",
			"version": Version,
			"ops": map[string]any{
				"eval":   "Evaluate an expression. Params: expr (string)",
				"define": "Define a named term. Params: name (string), expr (string)",
				"delete": "Delete a named term. Params: name (string)",
				"list":   "List all defined names.",
				"traces": "Return recent eval traces. Params: limit (int, optional)",
			},
			"builtins": []any{
				"add", "sub", "mul", "div", "mod",
				"lt", "gt", "eq", "not",
				"list", "head", "rest", "cons", "nth", "len", "append",
				"concat", "to-string", "split-once",
				"type", "branch?", "assert", "traces",
			},
			"forms": []any{"if", "let", "do", "lambda", "quote", "cond", "apply"},
		},
	}
}

func (s *Server) handleEval(id string, msg map[string]any) map[string]any {
	expr, ok := msg["expr"].(string)
	if !ok {
		return errorResponse(id, "eval: missing 'expr' string")
	}

	val, err := s.session.Eval(expr)
	if err != nil {
		return errorResponse(id, err.Error())
	}

	goVal, err := TermToGo(val)
	if err != nil {
		return errorResponse(id, fmt.Sprintf("serialize result: %s", err))
	}
	return map[string]any{"id": id, "ok": true, "value": goVal}
}

func (s *Server) handleDefine(id string, msg map[string]any) map[string]any {
	name, ok := msg["name"].(string)
	if !ok {
		return errorResponse(id, "define: missing 'name' string")
	}
	expr, ok := msg["expr"].(string)
	if !ok {
		return errorResponse(id, "define: missing 'expr' string")
	}
	if err := s.session.Define(name, expr); err != nil {
		return errorResponse(id, err.Error())
	}
	return map[string]any{"id": id, "ok": true, "value": name}
}

func (s *Server) handleDelete(id string, msg map[string]any) map[string]any {
	name, ok := msg["name"].(string)
	if !ok {
		return errorResponse(id, "delete: missing 'name' string")
	}
	if err := s.session.Delete(name); err != nil {
		return errorResponse(id, err.Error())
	}
	return map[string]any{"id": id, "ok": true, "value": name}
}

func (s *Server) handleList(id string) map[string]any {
	names := s.session.List()
	result := make([]any, len(names))
	for i, n := range names {
		result[i] = n
	}
	return map[string]any{"id": id, "ok": true, "value": result}
}

func (s *Server) handleTraces(id string, msg map[string]any) map[string]any {
	traces := s.session.Traces()

	// JSON numbers arrive as float64
	if limit, ok := msg["limit"].(float64); ok && limit >= 0 && int(limit) < len(traces) {
		traces = traces[len(traces)-int(limit):]
	}

	result := make([]any, len(traces))
	for i, tr := range traces {
		entry := map[string]any{
			"id":        tr.ID,
			"entry":     tr.Entry,
			"timestamp": tr.Timestamp,
		}
		if tr.Error != "" {
			entry["error"] = tr.Error
		} else {
			entry["result"] = tr.Result.String()
		}
		result[i] = entry
	}
	return map[string]any{"id": id, "ok": true, "value": result}
}

func errorResponse(id, errMsg string) map[string]any {
	return map[string]any{"id": id, "ok": false, "error": errMsg}
}

// --- Connection handling ---

func (s *Server) handleClientConnection(conn net.Conn) {
	if !s.trackConn(conn) {
		conn.Close()
		return
	}
	defer s.clients.Done()
	defer s.dropConn(conn)
	defer conn.Close()
	logrus.Debugf("client connected: %s", conn.RemoteAddr())

	for {
		msg, err := ReadMsg(conn)
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				logrus.Errorf("read client message: %v", err)
			}
			logrus.Debugf("client disconnected")
			return
		}

		resp := s.sendToActor(msg)
		if err := WriteMsg(conn, resp); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logrus.Errorf("write client response: %v", err)
			}
			return
		}
	}
}
