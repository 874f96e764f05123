// Package credential is the HTTP controller for the async credential
// endpoint. It owns the mapping from pipeline failures to the externally
// visible response contract and nothing else; every decision lives in the
// service.
package credential

import (
	"errors"
	"io"
	"net/http"

	dto "github.com/dropDatabas3/credstart/internal/http/dto/credential"
	"github.com/dropDatabas3/credstart/internal/http/helpers"
	svc "github.com/dropDatabas3/credstart/internal/http/services/credential"
	"github.com/dropDatabas3/credstart/internal/observability/logger"
)

// maxBodyBytes bounds the request body read.
const maxBodyBytes = 1 << 20

// Controller handles POST /async/credential.
type Controller struct {
	service svc.Service
}

// NewController wires the controller onto the pipeline service.
func NewController(s svc.Service) *Controller {
	return &Controller{service: s}
}

// Start runs the pipeline and writes the response.
func (c *Controller) Start(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.From(r.Context()).Warn("failed reading request body", logger.Err(err))
		helpers.WriteError(w, http.StatusBadRequest, "invalid_request", "Request body validation failed")
		return
	}

	outcome, err := c.service.Process(r.Context(), r.Header.Get("Authorization"), body)
	if err != nil {
		writeFailure(w, err)
		return
	}

	status := http.StatusOK
	if outcome.Created {
		status = http.StatusCreated
	}
	helpers.WriteJSON(w, status, dto.NewPendingResponse(outcome.Subject))
}

// writeFailure maps a terminal pipeline failure to the response contract.
// Stage ordering guarantees each error appears at exactly one point, so the
// mapping is total and order-independent.
func writeFailure(w http.ResponseWriter, err error) {
	var claimsErr *svc.ClaimsError

	switch {
	case errors.Is(err, svc.ErrAuthHeaderInvalid):
		helpers.WriteError(w, http.StatusUnauthorized, "Unauthorized", "Invalid token")
	case errors.As(err, &claimsErr):
		helpers.WriteError(w, http.StatusBadRequest, "invalid_token", claimsErr.Reason)
	case errors.Is(err, svc.ErrBodyInvalid):
		helpers.WriteError(w, http.StatusBadRequest, "invalid_request", "Request body validation failed")
	case errors.Is(err, svc.ErrSignatureInvalid):
		helpers.WriteError(w, http.StatusUnauthorized, "Unauthorized", "Invalid signature")
	case errors.Is(err, svc.ErrClientUnrecognized):
		helpers.WriteError(w, http.StatusBadRequest, "invalid_client", "Supplied client not recognised")
	default:
		// Registry, session store and audit transport failures all collapse
		// into the uniform server error.
		helpers.WriteServerError(w)
	}
}
