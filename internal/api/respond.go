package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": message})
}

func (s *Server) unauthorized(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
}

// internalError hides details from the client; they go to the log only.
func (s *Server) internalError(w http.ResponseWriter, message string, err error) {
	s.log.Error(message, "err", err)
	s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": message})
}
