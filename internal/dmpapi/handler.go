package dmpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmphub-lab/dmphub/internal/auth"
	httperr "github.com/dmphub-lab/dmphub/internal/core/errors"
	"github.com/dmphub-lab/dmphub/internal/dmp"
	"github.com/dmphub-lab/dmphub/internal/provenance"

	v1 "github.com/dmphub-lab/dmphub/internal/api/v1"
	"github.com/gin-gonic/gin"
)

const (
	msgReadBodyFailed  = "Failed to read request body"
	msgInvalidJSON     = "Invalid JSON body"
	msgEmptyBody       = "Request body must be a JSON object"
	msgAuthRequired    = "A bearer token is required for this operation"
	msgForbidden       = "Caller is not permitted to perform this operation"
	msgInternal        = "Internal error"
	msgMissingIdentity = "A DMP ID is required in the path"
)

// apiError carries the HTTP error shape from a helper back to the handler.
type apiError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *apiError) Error() string {
	return e.message
}

// GetHandler returns one version of a plan: latest by default, or the one
// named by ?version=<timestamp|tombstone>.
func (s *Service) GetHandler(c *gin.Context) {
	id, apiErr := pathIdentifier(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	rec, err := s.registry.Get(c.Request.Context(), id, c.Query("version"))
	if err != nil {
		writeError(c, classify(err))
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListHandler lists the plans an organization or contact owns
// (?owner=<ror|orcid>), or finds the plan the caller registered under its own
// identifier (?external_id=<id>).
func (s *Service) ListHandler(c *gin.Context) {
	ctx := c.Request.Context()

	if localID := c.Query("external_id"); localID != "" {
		prov, apiErr := s.caller(c)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}
		rec, err := s.registry.ByExternalIdentifier(ctx, prov, localID)
		if err != nil {
			writeError(c, classify(err))
			return
		}
		c.JSON(http.StatusOK, rec)
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	result, err := s.registry.ByOwner(ctx, c.Query("owner"), page, perPage)
	if err != nil {
		writeError(c, classify(err))
		return
	}
	c.JSON(http.StatusOK, result)
}

// CreateHandler registers a new plan for the calling provenance.
func (s *Service) CreateHandler(c *gin.Context) {
	prov, apiErr := s.caller(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	doc, apiErr := s.parseDocument(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	rec, err := s.registry.Create(c.Request.Context(), prov, doc)
	if err != nil {
		writeError(c, classify(err))
		return
	}

	slog.Info("DMP created", "dmp_id", identifierOf(rec), "provenance", prov.Name)
	c.JSON(http.StatusCreated, rec)
}

// UpdateHandler applies the caller's document to the latest version. An
// update that changes nothing answers 200 with the stored record.
func (s *Service) UpdateHandler(c *gin.Context) {
	id, apiErr := pathIdentifier(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	prov, apiErr := s.caller(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	doc, apiErr := s.parseDocument(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	rec, err := s.registry.Update(c.Request.Context(), prov, id, doc)
	if errors.Is(err, dmp.ErrNoChange) && rec != nil {
		slog.Debug("DMP update was a no-op", "dmp_id", id, "provenance", prov.Name)
		c.JSON(http.StatusOK, rec)
		return
	}
	if err != nil {
		writeError(c, classify(err))
		return
	}

	slog.Info("DMP updated", "dmp_id", id, "provenance", prov.Name)
	c.JSON(http.StatusOK, rec)
}

// TombstoneHandler retires the plan named in the path.
func (s *Service) TombstoneHandler(c *gin.Context) {
	id, apiErr := pathIdentifier(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	prov, apiErr := s.caller(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	rec, err := s.registry.Tombstone(c.Request.Context(), prov, id)
	if err != nil {
		writeError(c, classify(err))
		return
	}

	slog.Info("DMP tombstoned", "dmp_id", id, "provenance", prov.Name)
	c.JSON(http.StatusOK, rec)
}

// TombstoneDocumentHandler retires the plan named by a delete document.
func (s *Service) TombstoneDocumentHandler(c *gin.Context) {
	prov, apiErr := s.caller(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	doc, apiErr := s.parseDocument(c)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	rec, err := s.registry.TombstoneDocument(c.Request.Context(), prov, doc)
	if err != nil {
		writeError(c, classify(err))
		return
	}

	slog.Info("DMP tombstoned", "dmp_id", identifierOf(rec), "provenance", prov.Name)
	c.JSON(http.StatusOK, rec)
}

// caller resolves the authenticated provenance. Anonymous callers get 401,
// callers without a usable provenance 403.
func (s *Service) caller(c *gin.Context) (*provenance.Provenance, *apiError) {
	identity := auth.Identity(c)
	if identity == nil {
		return nil, &apiError{
			statusCode: http.StatusUnauthorized,
			errorType:  httperr.HttpUnauthorizedError,
			message:    msgAuthRequired,
		}
	}

	prov, err := s.resolver.Resolve(c.Request.Context(), identity)
	if err != nil {
		return nil, classify(err)
	}
	return prov, nil
}

// parseDocument reads the body under the size limit and unwraps the
// optional {"dmp": ...} envelope.
func (s *Service) parseDocument(c *gin.Context) (map[string]interface{}, *apiError) {
	maxBytes := int64(s.maxBodySizeBytes)
	bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes+1))
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, &apiError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, &apiError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	var body map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}
	if len(body) == 0 {
		return nil, &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgEmptyBody,
		}
	}
	return v1.Unwrap(body), nil
}

func pathIdentifier(c *gin.Context) (string, *apiError) {
	id := strings.Trim(c.Param("id"), "/")
	if id == "" {
		return "", &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidIdentifierError,
			message:    msgMissingIdentity,
		}
	}
	return id, nil
}

// classify maps a registry error onto its HTTP shape.
func classify(err error) *apiError {
	var failure *dmp.ValidationFailure
	switch {
	case errors.As(err, &failure):
		return &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    failure.Error(),
			details:    failure.Details(),
		}
	case errors.Is(err, dmp.ErrForbidden):
		return &apiError{statusCode: http.StatusForbidden, errorType: httperr.HttpForbiddenError, message: msgForbidden}
	case errors.Is(err, dmp.ErrNotFound):
		return &apiError{statusCode: http.StatusNotFound, errorType: httperr.HttpNotFoundError, message: err.Error()}
	case errors.Is(err, dmp.ErrInvalidIdentifier):
		return &apiError{statusCode: http.StatusBadRequest, errorType: httperr.HttpInvalidIdentifierError, message: err.Error()}
	case errors.Is(err, dmp.ErrAlreadyExists):
		return &apiError{statusCode: http.StatusConflict, errorType: httperr.HttpAlreadyExistsError, message: err.Error()}
	case errors.Is(err, dmp.ErrWriteConflict):
		return &apiError{statusCode: http.StatusConflict, errorType: httperr.HttpConflictError, message: err.Error()}
	case errors.Is(err, dmp.ErrNoHistoricalMutation):
		return &apiError{statusCode: http.StatusBadRequest, errorType: httperr.HttpNoHistoricalMutation, message: err.Error()}
	case errors.Is(err, dmp.ErrNoOwnerOrganization):
		return &apiError{statusCode: http.StatusBadRequest, errorType: httperr.HttpNoOwnerOrganization, message: err.Error()}
	case errors.Is(err, dmp.ErrNotVersionable):
		return &apiError{statusCode: http.StatusBadRequest, errorType: httperr.HttpNotVersionableError, message: err.Error()}
	case errors.Is(err, dmp.ErrMintingExhausted):
		slog.Error("Identifier minting exhausted", "error", err)
		return &apiError{statusCode: http.StatusInternalServerError, errorType: httperr.HttpMintingExhaustedError, message: err.Error()}
	default:
		slog.Error("Registry operation failed", "error", err)
		return &apiError{statusCode: http.StatusInternalServerError, errorType: httperr.HttpInternalError, message: msgInternal}
	}
}

func identifierOf(rec *v1.Record) string {
	if rec == nil || rec.DmpID == nil {
		return ""
	}
	return rec.DmpID.Identifier
}

// writeError serializes an apiError as the JSON HTTP response.
func writeError(c *gin.Context, err *apiError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
