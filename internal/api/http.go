package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/gorilla/mux"
	"github.com/heysubinoy/quotakv/internal/logr"
	"github.com/heysubinoy/quotakv/pkg/kv"
)

// maxBodyBytes caps the size of request bodies.
const maxBodyBytes = 1 << 20

// Server wraps a kv.Store and exposes its operations on a single HTTP
// resource endpoint.
type Server struct {
	Store    kv.Store
	Endpoint string
	Logger   logr.Logger
}

// NewServer creates a new HTTP server with the given store, serving on
// endpoint.
func NewServer(store kv.Store, endpoint string, logger logr.Logger) *Server {
	return &Server{
		Store:    store,
		Endpoint: endpoint,
		Logger:   logger,
	}
}

// RegisterRoutes registers all HTTP handlers on the given router. The
// by-key route expects r to match on encoded paths, as NewRouter does, with
// the key path-escaped into a single segment.
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(s.Endpoint, s.handleList).Methods(http.MethodGet)
	r.HandleFunc(s.Endpoint, s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc(s.Endpoint, s.handleUpsert).Methods(http.MethodPut)
	r.HandleFunc(s.Endpoint, s.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc(path.Join(s.Endpoint, "{main_key}"), s.handleGet).Methods(http.MethodGet)
}

// handleList handles GET requests, returning every entry as a JSON array.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Store.List())
}

// handleGet handles GET <endpoint>/{main_key}.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(mux.Vars(r)["main_key"])
	if err != nil {
		s.writeError(w, r, &kv.ValidationError{Field: kv.FieldKey, Reason: "must be a path-escaped string"})
		return
	}
	entry, err := s.Store.Get(key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

// handleCreate handles POST requests with JSON body.
// Expects: {"main_key": "foo", "value": "bar"}
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	entry, err := s.decodeEntry(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.Store.Insert(entry.Key, entry.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.V(2).Info("created entry", "main_key", created.Key)
	s.writeJSON(w, http.StatusOK, created)
}

// handleUpsert handles PUT requests with JSON body.
// Expects: {"main_key": "foo", "value": "bar"}
func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	entry, err := s.decodeEntry(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stored, err := s.Store.Upsert(entry.Key, entry.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.V(2).Info("upserted entry", "main_key", stored.Key)
	s.writeJSON(w, http.StatusOK, stored)
}

// handleDelete handles DELETE requests with JSON body.
// Expects: {"main_key": "foo"}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := kv.ValidateKey(fields)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Store.Remove(key); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.V(2).Info("removed entry", "main_key", key)
	s.writeJSON(w, http.StatusOK, map[string]string{kv.FieldKey: key})
}

func (s *Server) decodeEntry(w http.ResponseWriter, r *http.Request) (kv.Entry, error) {
	fields, err := decodeFields(w, r)
	if err != nil {
		return kv.Entry{}, err
	}
	return kv.ValidateEntry(fields)
}

// decodeFields decodes a JSON object body into a generic map so that field
// types can be validated. An empty body yields a nil map.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	if r.Body == nil {
		return nil, nil
	}
	var fields map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &kv.ValidationError{Field: kv.FieldBody, Reason: "body must be a JSON object"}
	}
	return fields, nil
}

// ErrorResponse is the payload returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

// writeError translates a store or validation error into a response. Every
// store error kind is a client error; anything else is a server error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error(), Kind: kv.Kind(err)}

	var verr *kv.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}

	status := http.StatusBadRequest
	if resp.Kind == kv.KindInternal {
		status = http.StatusInternalServerError
		resp.Error = "internal error"
		s.Logger.Error(err, "handling request", "method", r.Method, "path", r.URL.Path)
	} else {
		s.Logger.V(1).Info("rejected request", "method", r.Method, "kind", resp.Kind, "reason", err.Error())
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error(err, "encoding response")
	}
}
