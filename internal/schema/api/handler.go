package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dmphub-lab/dmphub/internal/schema"
	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

// Handler handles contract HTTP requests.
type Handler struct {
	registry  *schema.Registry
	validator *schema.Validator
}

func NewHandler(reg *schema.Registry, val *schema.Validator) *Handler {
	return &Handler{
		registry:  reg,
		validator: val,
	}
}

// RegisterRoutes mounts the read-only contract API under /v1/contracts.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	contracts := r.Group("/v1/contracts")
	contracts.GET("", h.HandleList)
	contracts.GET("/:contract/:version", h.HandleGet)
	contracts.POST("/:contract/:version/validate", h.HandleValidate)
}

// ContractResponse is the response body for a single contract version.
type ContractResponse struct {
	ID          string `json:"id"`
	Scope       string `json:"scope"`
	Contract    string `json:"contract"`
	Version     int    `json:"version"`
	Format      string `json:"format"`
	State       string `json:"state"`
	StrictMode  bool   `json:"strict_mode"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   string `json:"created_at"`
}

// ListedContractResponse is the list payload for contract discovery.
// For YAML contracts, Definition contains parsed JSON-compatible data.
type ListedContractResponse struct {
	Scope      string      `json:"scope"`
	Contract   string      `json:"contract"`
	Version    int         `json:"version"`
	Format     string      `json:"format"`
	StrictMode bool        `json:"strict_mode"`
	State      string      `json:"state"`
	Definition interface{} `json:"definition"`
}

// ErrorResponse is the error response body.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// scope reads the ?scope= query parameter. Contracts of a provenance scope
// fall back to the platform scope on lookup.
func scope(c *gin.Context) string {
	return c.DefaultQuery("scope", schema.PlatformScope)
}

// pathKey parses the :contract and :version path parameters.
func pathKey(c *gin.Context) (schema.Contract, int, bool) {
	contract := schema.Contract(c.Param("contract"))
	if !contract.Valid() {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "contract_not_found", Message: "unknown contract " + string(contract)})
		return "", 0, false
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_version", Message: "version must be an integer"})
		return "", 0, false
	}
	return contract, version, true
}

// HandleGet handles GET /v1/contracts/{contract}/{version}.
func (h *Handler) HandleGet(c *gin.Context) {
	contract, version, ok := pathKey(c)
	if !ok {
		return
	}

	s, err := h.registry.Get(c.Request.Context(), scope(c), contract, version)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, h.toResponse(s))
}

// HandleList handles GET /v1/contracts.
func (h *Handler) HandleList(c *gin.Context) {
	contract := schema.Contract(c.Query("contract"))

	schemas, err := h.registry.List(c.Request.Context(), scope(c), contract)
	if err != nil {
		slog.Error("Contract list error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to list contracts"})
		return
	}

	responses := make([]*ListedContractResponse, len(schemas))
	for i, s := range schemas {
		resp, convErr := h.toListedResponse(s)
		if convErr != nil {
			slog.Error("Contract list conversion error", "error", convErr, "contract", s.Contract, "version", s.Version)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to convert contract definition"})
			return
		}
		responses[i] = resp
	}

	c.JSON(http.StatusOK, responses)
}

// HandleValidate handles POST /v1/contracts/{contract}/{version}/validate (dry-run).
func (h *Handler) HandleValidate(c *gin.Context) {
	contract, version, ok := pathKey(c)
	if !ok {
		return
	}

	var data map[string]interface{}
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_json", Message: "Invalid JSON body"})
		return
	}

	s, err := h.registry.Get(c.Request.Context(), scope(c), contract, version)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}

	if err := h.validator.ValidateData(c.Request.Context(), s, data); err != nil {
		var details interface{}
		var detailer schema.ValidationDetailer
		if errors.As(err, &detailer) {
			details = detailer.Details()
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: err.Error(), Details: details})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":    true,
		"contract": contract,
		"version":  version,
	})
}

func (h *Handler) lookupFailed(c *gin.Context, err error) {
	if errors.Is(err, schema.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "contract_not_found", Message: err.Error()})
		return
	}
	slog.Error("Contract lookup error", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to load contract"})
}

func (h *Handler) toResponse(s *schema.Schema) *ContractResponse {
	return &ContractResponse{
		ID:          s.ID,
		Scope:       s.Scope,
		Contract:    string(s.Contract),
		Version:     s.Version,
		Format:      string(s.Format),
		State:       string(s.State),
		StrictMode:  s.StrictMode,
		Fingerprint: s.Fingerprint,
		CreatedAt:   s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) toListedResponse(s *schema.Schema) (*ListedContractResponse, error) {
	resp := &ListedContractResponse{
		Scope:      s.Scope,
		Contract:   string(s.Contract),
		Version:    s.Version,
		Format:     string(s.Format),
		StrictMode: s.StrictMode,
		State:      string(s.State),
	}

	if s.Format == schema.FormatYaml {
		var parsed map[string]interface{}
		if err := yaml.Unmarshal(s.Definition, &parsed); err != nil {
			return nil, err
		}
		resp.Definition = parsed
		return resp, nil
	}

	resp.Definition = map[string]interface{}{
		"raw": string(s.Definition),
	}
	return resp, nil
}
