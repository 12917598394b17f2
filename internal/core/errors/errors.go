package errors

const (
	HttpInternalError          = "internal_error"
	HttpInvalidJsonError       = "invalid_json"
	HttpInvalidIdentifierError = "invalid_identifier"
	HttpContractNotFoundError  = "contract_not_found"
	HttpValidationError        = "contract_validation_failed"
	HttpUnauthorizedError      = "unauthorized"
	HttpForbiddenError         = "forbidden"
	HttpNotFoundError          = "not_found"
	HttpAlreadyExistsError     = "already_exists"
	HttpNoHistoricalMutation   = "no_historical_mutation"
	HttpNoOwnerOrganization    = "no_owner_organization"
	HttpMintingExhaustedError  = "minting_exhausted"
	HttpNotVersionableError    = "not_versionable"
	HttpConflictError          = "write_conflict"
)

// ErrorResponse is the error response body for every JSON API error.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
