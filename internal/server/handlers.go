package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/b2b-migrator/internal/ledger"
	"github.com/jonathan/b2b-migrator/internal/target"
	"github.com/jonathan/b2b-migrator/internal/types"
)

// ExtractResponse is returned by POST /extract.
type ExtractResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"`
	ArtifactCount int    `json:"artifact_count"`
}

// handleExtract ingests a source-system export and persists its artifacts.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req types.ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.orchestrator.Extract(r.Context(), req.Method, req.Export)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusCreated, ExtractResponse{
		JobID:         job.ID.String(),
		Status:        string(job.Status),
		ArtifactCount: job.ArtifactCount,
	})
}

// handleTransformAll transforms every artifact with status new.
func (s *Server) handleTransformAll(w http.ResponseWriter, r *http.Request) {
	summary, err := s.orchestrator.TransformAll(r.Context())
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

// handleTransformOne transforms a single artifact.
func (s *Server) handleTransformOne(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	artifact, err := s.orchestrator.TransformOne(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, artifact)
}

// resolveCredentials maps a migrate request's credential key to credentials.
func (s *Server) resolveCredentials(req *types.MigrateRequest) (target.Credentials, error) {
	return s.appConfig.ResolveCredentials(req.CredentialsKey)
}

// handleMigrateAll migrates every pending artifact as one batch.
func (s *Server) handleMigrateAll(w http.ResponseWriter, r *http.Request) {
	var req types.MigrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	creds, err := s.resolveCredentials(&req)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.orchestrator.MigrateAll(r.Context(), creds, req.Force)
	if err != nil {
		// The summary still accounts for every artifact; return it alongside
		// the batch failure status.
		s.jsonResponse(w, HTTPStatus(err), summary)
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

// handleMigrateOne migrates a single artifact.
func (s *Server) handleMigrateOne(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req types.MigrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	creds, err := s.resolveCredentials(&req)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.orchestrator.MigrateOne(r.Context(), id, creds, req.Force)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

// handleReject rejects a failed artifact back to status new.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	artifact, err := s.orchestrator.Reject(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, artifact)
}

// handleRemigrate force-resets a migrated artifact to status new.
func (s *Server) handleRemigrate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	artifact, err := s.orchestrator.ForceRemigrate(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, artifact)
}

// handleListArtifacts lists artifacts, optionally filtered by ?status=.
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	var (
		artifacts []types.Artifact
		err       error
	)
	if statusFilter := r.URL.Query().Get("status"); statusFilter != "" {
		status := types.ArtifactStatus(statusFilter)
		switch status {
		case types.StatusNew, types.StatusPending, types.StatusMigrated, types.StatusError:
		default:
			s.errorResponse(w, http.StatusBadRequest, "unknown status: "+statusFilter)
			return
		}
		artifacts, err = s.store.ListArtifactsByStatus(r.Context(), status)
	} else {
		artifacts, err = s.store.ListArtifacts(r.Context())
	}
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	if artifacts == nil {
		artifacts = []types.Artifact{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"artifacts": artifacts,
		"count":     len(artifacts),
	})
}

// handleGetArtifact returns one artifact.
func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	artifact, err := s.store.GetArtifact(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if artifact == nil {
		notFound := &ledger.NotFoundError{Kind: "artifact", ID: id}
		s.errorResponse(w, HTTPStatus(notFound), notFound.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, artifact)
}

// handleListAttempts returns an artifact's migration attempt history.
func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	artifact, err := s.store.GetArtifact(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if artifact == nil {
		notFound := &ledger.NotFoundError{Kind: "artifact", ID: id}
		s.errorResponse(w, HTTPStatus(notFound), notFound.Error())
		return
	}

	attempts, err := s.store.ListAttempts(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if attempts == nil {
		attempts = []types.MigrationAttempt{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"artifact_id": id.String(),
		"attempts":    attempts,
	})
}

// handleGetJob returns one extraction job.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if job == nil {
		notFound := &ledger.NotFoundError{Kind: "extraction job", ID: id}
		s.errorResponse(w, HTTPStatus(notFound), notFound.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

// pathID parses the {id} path segment as a UUID, writing a 400 on failure.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := r.PathValue("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid ID: "+idStr)
		return uuid.Nil, false
	}
	return id, true
}
