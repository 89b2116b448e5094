package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"perpeditions/core/state"
	"perpeditions/native/editions"
	"perpeditions/native/ledger"
	"perpeditions/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the edition sale engine and the reference ledger over
// JSON-RPC. Every request runs against the shared state manager; staged writes
// are committed only after the handler succeeds, so a failed call leaves no
// partial state behind. The mutex serializes the dispatch-commit span: the
// state manager's overlay is unsynchronized, and interleaved requests would
// commit or discard each other's staged writes.
type Server struct {
	engine *editions.Engine
	ledger *ledger.StateLedger
	state  *state.Manager
	mu     sync.Mutex

	// module is the identity under which the sale engine is registered on
	// each tenant's permission bitmap. The mint path verifies the bitmap the
	// way the external ledger does at call dispatch.
	module    [20]byte
	authToken string
}

// NewServer constructs the RPC server. A bearer token is read from the
// PERPEDITIONS_RPC_TOKEN environment variable; when set, ledger administration
// methods require it.
func NewServer(engine *editions.Engine, lgr *ledger.StateLedger, st *state.Manager, module [20]byte) *Server {
	token := strings.TrimSpace(os.Getenv("PERPEDITIONS_RPC_TOKEN"))
	return &Server{
		engine:    engine,
		ledger:    lgr,
		state:     st,
		module:    module,
		authToken: token,
	}
}

// Start serves JSON-RPC on addr until the listener fails.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return http.ListenAndServe(addr, mux)
}

// Handler returns the request handler for tests and embedding.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// bufferedResponse captures the handler's output so nothing reaches the client
// before the staged state writes are committed. A success body sent ahead of a
// failed commit would tell the caller a mutation happened that was then
// discarded.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) { b.status = status }

func (b *bufferedResponse) Write(p []byte) (int, error) { return b.body.Write(p) }

func (b *bufferedResponse) flush(w http.ResponseWriter) {
	for key, values := range b.header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	if b.status != http.StatusOK {
		w.WriteHeader(b.status)
	}
	_, _ = w.Write(b.body.Bytes())
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "bearer token required"}
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid token"}
	}
	return nil
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = "request body too large"
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	buffered := newBufferedResponse()
	started := time.Now()

	// Calls are totally ordered: the lock covers the handler and the
	// commit/reset decision so no request ever observes or flushes another
	// request's staged writes.
	s.mu.Lock()

	switch req.Method {
	case "editions_setContractConfig":
		s.handleSetContractConfig(buffered, &req)
	case "editions_createToken":
		s.handleCreateToken(buffered, &req)
	case "editions_mint":
		s.handleMint(buffered, &req)
	case "editions_getConfig":
		s.handleGetConfig(buffered, &req)
	case "editions_getEdition":
		s.handleGetEdition(buffered, &req)
	case "editions_getMinted":
		s.handleGetMinted(buffered, &req)
	case "ledger_registerContract":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(buffered, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			break
		}
		s.handleRegisterContract(buffered, &req)
	case "ledger_credit":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(buffered, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			break
		}
		s.handleCredit(buffered, &req)
	case "ledger_balance":
		s.handleBalance(buffered, &req)
	default:
		writeError(buffered, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}

	// The state manager stages every write made during the handler; only a
	// fully successful call may reach the database, and the client only sees
	// the success body once the commit has landed.
	if buffered.status < 400 {
		if err := s.state.Commit(); err != nil {
			s.state.Reset()
			s.mu.Unlock()
			slog.Error("state commit failed", slog.String("method", req.Method), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "state commit failed", err.Error())
			observability.SaleMetrics().Observe(req.Method, http.StatusInternalServerError, time.Since(started))
			return
		}
	} else {
		s.state.Reset()
	}
	s.mu.Unlock()

	buffered.flush(w)
	observability.SaleMetrics().Observe(req.Method, buffered.status, time.Since(started))
}
