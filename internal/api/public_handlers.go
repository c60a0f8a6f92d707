package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/grantd/grantd/internal/api/presenter"
	"github.com/grantd/grantd/internal/buildinfo"
)

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

// handleJWKS serves the public verification keys for minted access tokens.
func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	keySet, err := s.signer.PublicJWKS()
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to build JWKS")
		presenter.Error(w, r, "failed to build key set", http.StatusInternalServerError)
		return
	}
	presenter.JSON(w, r, keySet, http.StatusOK)
}
