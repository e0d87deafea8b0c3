package handler

import (
	"net/http"

	"github.com/fellsidecars/backend/spec"
)

// GetOpenAPI handles GET /openapi.yaml, serving the spec embedded in the
// binary so it can never drift from the running code.
func (s *Server) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(spec.OpenAPI)
}
