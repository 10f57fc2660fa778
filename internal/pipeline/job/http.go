// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package job

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/resumora/resumora/internal/platform/middleware"
	requestutil "github.com/resumora/resumora/internal/platform/request"
	"github.com/resumora/resumora/internal/platform/respond"
	"github.com/resumora/resumora/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the resume submission and job tracking endpoints.
type Handler struct {
	jobService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{jobService: service}
}

// ResumeRoutes returns the submission router, mounted under /resumes.
//
// # Endpoints
//   - POST / : Stores resume text and enqueues an extraction job.
func (handler *Handler) ResumeRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)
	router.Post("/", handler.submitResume)
	return router
}

// JobRoutes returns the tracking router, mounted under /jobs.
//
// # Endpoints
//   - GET    /{jobID} : Returns status, position, and result when done.
//   - DELETE /{jobID} : Cancels a still-queued job.
func (handler *Handler) JobRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)
	router.Get("/{jobID}", handler.getJob)
	router.Delete("/{jobID}", handler.cancelJob)
	return router
}

// # Request Payloads

type submitResumeRequest struct {
	Text string `json:"text"`
}

/*
SubmitResume stores the resume text and queues it for extraction.

POST /api/v1/resumes

Description: The document is parsed to text upstream; this endpoint takes
the raw text, persists it, and returns the queued job so the client can
poll for the result.

Request:
  - Body: submitResumeRequest (Text)

Response:
  - 202: Job: ID, position, and estimated wait
  - 400: ErrInvalidJSON: Bad input or validation failure
  - 413: PAYLOAD_TOO_LARGE: Text exceeds the byte limit
*/
func (handler *Handler) submitResume(writer http.ResponseWriter, request *http.Request) {
	principalID, err := requestutil.RequiredPrincipalID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input submitResumeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldText, input.Text).
		UTF8(FieldText, input.Text)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	queued, err := handler.jobService.Submit(request.Context(), principalID, input.Text)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Accepted(writer, map[string]any{FieldJob: queued})
}

/*
GetJob reports the current state of one of the caller's jobs.

GET /api/v1/jobs/{jobID}

Description: While queued, the position is recomputed live so polling
clients watch it shrink. Completed jobs carry the extraction record; failed
jobs carry the error kind and a user-facing message.

Response:
  - 200: Job
  - 404: ErrNotFound: Unknown job, or owned by someone else
*/
func (handler *Handler) getJob(writer http.ResponseWriter, request *http.Request) {
	principalID, err := requestutil.RequiredPrincipalID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	jobID := requestutil.ID(request, FieldJobID)
	validator := &validate.Validator{}
	validator.Required(FieldJobID, jobID).
		UUID(FieldJobID, jobID)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	found, err := handler.jobService.Get(request.Context(), jobID, principalID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldJob: found})
}

/*
CancelJob withdraws one of the caller's still-queued jobs.

DELETE /api/v1/jobs/{jobID}

Description: Only queued jobs can be cancelled. A job already claimed by
the engine, or already finished, answers 409 rather than pretending.

Response:
  - 200: Message confirming the cancellation
  - 404: ErrNotFound: Unknown job, or owned by someone else
  - 409: ErrConflict: Job is past cancelling
*/
func (handler *Handler) cancelJob(writer http.ResponseWriter, request *http.Request) {
	principalID, err := requestutil.RequiredPrincipalID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	jobID := requestutil.ID(request, FieldJobID)
	validator := &validate.Validator{}
	validator.Required(FieldJobID, jobID).
		UUID(FieldJobID, jobID)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.jobService.Cancel(request.Context(), jobID, principalID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{FieldMessage: "Job cancelled."})
}
