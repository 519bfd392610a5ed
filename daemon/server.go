package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/verdict"
	verdictotel "github.com/petal-labs/verdict/otel"
	"github.com/petal-labs/verdict/store"
)

// ServerConfig controls daemon HTTP server dependencies.
type ServerConfig struct {
	Store    store.RuleStore
	Catalog  *verdict.Catalog
	Observer *verdictotel.EngineObserver
	Logger   *slog.Logger

	// CORSOrigin is the allowed CORS origin ("*" by default).
	CORSOrigin string

	// MaxBody caps request body size in bytes (1 MB by default).
	MaxBody int64
}

// Server exposes rule management, ad-hoc engine operations, and catalog
// administration over HTTP.
type Server struct {
	store      store.RuleStore
	catalog    *verdict.Catalog
	observer   *verdictotel.EngineObserver
	logger     *slog.Logger
	corsOrigin string
	maxBody    int64
}

// NewServer constructs a daemon API server with default in-memory
// storage and an empty catalog when none are supplied.
func NewServer(cfg ServerConfig) *Server {
	ruleStore := cfg.Store
	if ruleStore == nil {
		ruleStore = store.NewMemoryStore()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = verdict.NewCatalog()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	return &Server{
		store:      ruleStore,
		catalog:    catalog,
		observer:   cfg.Observer,
		logger:     logger,
		corsOrigin: corsOrigin,
		maxBody:    maxBody,
	}
}

// Catalog returns the attribute catalog the server validates against.
func (s *Server) Catalog() *verdict.Catalog {
	return s.catalog
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/rules", s.handleListRules)
	mux.HandleFunc("POST /api/rules", s.handleCreateRule)
	mux.HandleFunc("GET /api/rules/{id}", s.handleGetRule)
	mux.HandleFunc("PUT /api/rules/{id}", s.handleUpdateRule)
	mux.HandleFunc("DELETE /api/rules/{id}", s.handleDeleteRule)
	mux.HandleFunc("POST /api/rules/{id}/evaluate", s.handleEvaluateRule)

	mux.HandleFunc("POST /api/parse", s.handleParse)
	mux.HandleFunc("POST /api/evaluate", s.handleEvaluate)
	mux.HandleFunc("POST /api/combine", s.handleCombine)

	mux.HandleFunc("GET /api/attributes", s.handleListAttributes)
	mux.HandleFunc("POST /api/attributes", s.handleRegisterAttribute)
	mux.HandleFunc("DELETE /api/attributes/{name}", s.handleRemoveAttribute)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)
	return handler
}

type createRuleRequest struct {
	Name string `json:"name,omitempty"`
	Rule string `json:"rule"`
}

type parseRequest struct {
	Rule string `json:"rule"`
}

type parseResponse struct {
	AST json.RawMessage `json:"ast"`
}

type evaluateRequest struct {
	Rule   string          `json:"rule,omitempty"`
	AST    json.RawMessage `json:"ast,omitempty"`
	Record map[string]any  `json:"record"`
}

type evaluateResponse struct {
	Result bool `json:"result"`
}

type combineRequest struct {
	Connective string            `json:"connective"`
	ASTs       []json.RawMessage `json:"asts"`
}

type attributeRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type attributeResponse struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type apiErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type apiErrorResponse struct {
	Error apiErrorDetail `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": records})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	rec, found, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !found {
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("rule %q not found", id), nil)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Rule) == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_RULE", "rule is required", nil)
		return
	}

	ast, err := s.compileObserved("", req.Rule)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	now := time.Now().UTC()
	rec := store.RuleRecord{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(req.Name),
		RuleString: req.Rule,
		AST:        ast,
		Valid:      true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(r.Context(), rec); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	var req createRuleRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}

	rec, found, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !found {
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("rule %q not found", id), nil)
		return
	}

	if strings.TrimSpace(req.Name) != "" {
		rec.Name = strings.TrimSpace(req.Name)
	}
	if strings.TrimSpace(req.Rule) != "" {
		ast, err := s.compileObserved(id, req.Rule)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		rec.RuleString = req.Rule
		rec.AST = ast
		rec.Valid = true
		rec.ValidationError = ""
		rec.CheckedAt = nil
	}
	rec.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(r.Context(), rec); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), strings.TrimSpace(r.PathValue("id"))); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvaluateRule(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	var raw map[string]any
	if err := decodeJSONBody(r, &raw); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}

	rec, found, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !found {
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("rule %q not found", id), nil)
		return
	}

	node, err := verdict.UnmarshalNode(rec.AST)
	if err != nil {
		s.logger.Error("stored AST failed to decode", "rule_id", id, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL", "stored rule is corrupted", nil)
		return
	}

	result, err := s.evaluateObserved(id, node, raw)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Result: result})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}

	ast, err := s.compileObserved("", req.Rule)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, parseResponse{AST: ast})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}

	var node verdict.Node
	switch {
	case len(req.AST) > 0:
		decoded, err := verdict.UnmarshalNode(req.AST)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "INVALID_AST", err.Error(), nil)
			return
		}
		node = decoded
	case strings.TrimSpace(req.Rule) != "":
		tokens, err := verdict.Tokenize(req.Rule)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		parsed, err := verdict.Parse(tokens, s.catalog)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		node = parsed
	default:
		writeJSONError(w, http.StatusBadRequest, "INVALID_RULE", "either rule or ast is required", nil)
		return
	}

	result, err := s.evaluateObserved("", node, req.Record)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Result: result})
}

func (s *Server) handleCombine(w http.ResponseWriter, r *http.Request) {
	var req combineRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}

	connective := verdict.Connective(strings.ToUpper(strings.TrimSpace(req.Connective)))
	trees := make([]verdict.Node, 0, len(req.ASTs))
	for i, raw := range req.ASTs {
		node, err := verdict.UnmarshalNode(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "INVALID_AST",
				fmt.Sprintf("ast %d: %v", i, err), nil)
			return
		}
		trees = append(trees, node)
	}

	combined, err := verdict.Combine(connective, trees...)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_COMBINE", err.Error(), nil)
		return
	}
	data, err := verdict.MarshalNode(combined)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, parseResponse{AST: data})
}

func (s *Server) handleListAttributes(w http.ResponseWriter, r *http.Request) {
	names := s.catalog.Names()
	attrs := make([]attributeResponse, 0, len(names))
	for _, name := range names {
		typ, ok := s.catalog.Lookup(name)
		if !ok {
			continue
		}
		attrs = append(attrs, attributeResponse{Name: name, Type: string(typ)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"attributes": attrs})
}

func (s *Server) handleRegisterAttribute(w http.ResponseWriter, r *http.Request) {
	var req attributeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}

	typ, err := verdict.ParseAttributeType(req.Type)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_TYPE", err.Error(), nil)
		return
	}
	if err := s.catalog.Register(req.Name, typ); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Info("attribute registered", "name", req.Name, "type", string(typ))
	writeJSON(w, http.StatusCreated, attributeResponse{Name: strings.TrimSpace(req.Name), Type: string(typ)})
}

func (s *Server) handleRemoveAttribute(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if !s.catalog.Remove(name) {
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("attribute %q not found", name), nil)
		return
	}
	s.logger.Info("attribute removed", "name", name)
	w.WriteHeader(http.StatusNoContent)
}

// compileObserved compiles a rule string while recording the attempt.
func (s *Server) compileObserved(ruleID, rule string) (json.RawMessage, error) {
	started := time.Now()
	node, err := verdict.Compile(rule, s.catalog)
	s.observer.ObserveParse(verdictotel.ParseObservation{
		RuleID:    ruleID,
		Success:   err == nil,
		ErrorCode: engineErrorCode(err),
		Duration:  time.Since(started),
	})
	if err != nil {
		return nil, err
	}
	return verdict.MarshalNode(node)
}

// evaluateObserved converts the raw record and evaluates the tree while
// recording the attempt.
func (s *Server) evaluateObserved(ruleID string, node verdict.Node, raw map[string]any) (bool, error) {
	record, err := verdict.RecordFromJSON(raw)
	if err != nil {
		return false, &recordError{cause: err}
	}

	started := time.Now()
	result, err := verdict.Evaluate(node, record)
	s.observer.ObserveEval(verdictotel.EvalObservation{
		RuleID:    ruleID,
		Success:   err == nil,
		Result:    result,
		ErrorCode: engineErrorCode(err),
		Duration:  time.Since(started),
	})
	return result, err
}

// recordError wraps record conversion failures so writeEngineError can
// map them to a 400 rather than an engine error code.
type recordError struct {
	cause error
}

func (e *recordError) Error() string { return e.cause.Error() }
func (e *recordError) Unwrap() error { return e.cause }

// engineErrorCode extracts the machine-readable code from a typed engine
// error, or "" when there is none.
func engineErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var lexErr *verdict.LexError
	if errors.As(err, &lexErr) {
		return lexErr.Code
	}
	var parseErr *verdict.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Code
	}
	var evalErr *verdict.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Code
	}
	var catErr *verdict.CatalogError
	if errors.As(err, &catErr) {
		return catErr.Code
	}
	return ""
}

// writeEngineError maps typed engine errors 1:1 onto structured HTTP
// responses. Parsing and evaluation are deterministic, so no response
// carries retry semantics.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var lexErr *verdict.LexError
	if errors.As(err, &lexErr) {
		writeJSONError(w, http.StatusBadRequest, lexErr.Code, lexErr.Error(), map[string]any{"pos": lexErr.Pos})
		return
	}

	var parseErr *verdict.ParseError
	if errors.As(err, &parseErr) {
		details := map[string]any{"pos": parseErr.Pos}
		if parseErr.Attribute != "" {
			details["attribute"] = parseErr.Attribute
		}
		if parseErr.Expected != "" {
			details["expected"] = parseErr.Expected
			details["found"] = parseErr.Found
		}
		writeJSONError(w, http.StatusBadRequest, parseErr.Code, parseErr.Error(), details)
		return
	}

	var evalErr *verdict.EvalError
	if errors.As(err, &evalErr) {
		writeJSONError(w, http.StatusUnprocessableEntity, evalErr.Code, evalErr.Error(),
			map[string]any{"attribute": evalErr.Attribute})
		return
	}

	var catErr *verdict.CatalogError
	if errors.As(err, &catErr) {
		writeJSONError(w, http.StatusConflict, catErr.Code, catErr.Error(),
			map[string]any{"name": catErr.Name})
		return
	}

	var recErr *recordError
	if errors.As(err, &recErr) {
		writeJSONError(w, http.StatusBadRequest, "INVALID_RECORD", recErr.Error(), nil)
		return
	}

	s.logger.Error("unexpected engine error", "error", err)
	writeJSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrRuleNotFound):
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, store.ErrRuleExists):
		writeJSONError(w, http.StatusConflict, "ALREADY_EXISTS", err.Error(), nil)
	default:
		s.logger.Error("store error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSONBody(r *http.Request, target any) error {
	if target == nil {
		return errors.New("decode target is nil")
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
