package dmp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmphub-lab/dmphub/internal/identifier"
	"github.com/dmphub-lab/dmphub/internal/provenance"
	"github.com/dmphub-lab/dmphub/internal/schema"
)

var (
	// ErrForbidden is returned when the caller has no provenance, or its
	// provenance may not perform the requested mutation.
	ErrForbidden = provenance.ErrForbidden

	// ErrNotFound is returned when nothing is stored at the requested version.
	ErrNotFound = errors.New("dmp not found")

	// ErrInvalidIdentifier is returned for values that are not DOI-shaped.
	ErrInvalidIdentifier = identifier.ErrInvalidIdentifier

	// ErrAlreadyExists is returned by Create when the supplied identifier is
	// live or an equivalent plan (same contact and title) is already registered.
	ErrAlreadyExists = errors.New("dmp already exists")

	// ErrMintingExhausted is returned when every candidate identifier was taken.
	// Nothing was written, so the request can be retried as a whole.
	ErrMintingExhausted = errors.New("identifier minting attempts exhausted")

	// ErrNoChange is returned when an update would not alter the plan. It is a
	// no-op signal, not a failure.
	ErrNoChange = errors.New("no change")

	// ErrNoHistoricalMutation is returned when the target has no latest
	// version: snapshots and tombstones are immutable.
	ErrNoHistoricalMutation = errors.New("only the latest version of a dmp can be mutated")

	// ErrNoOwnerOrganization is returned when neither the contact nor the
	// contributors carry an affiliation identifier.
	ErrNoOwnerOrganization = errors.New("owner organization could not be determined")

	// ErrNotVersionable is returned when the stored latest version does not
	// carry the identifier it is stored under.
	ErrNotVersionable = errors.New("dmp is not versionable")

	// ErrWriteConflict is returned when conditional writes are enabled and the
	// latest version kept changing underneath every retry.
	ErrWriteConflict = errors.New("concurrent update conflict")
)

// ValidationFailure reports the violations of a document against a contract.
type ValidationFailure struct {
	Contract schema.Contract
	Errors   []*schema.ValidationError
}

func (e *ValidationFailure) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("document does not satisfy the %s contract: %s", e.Contract, strings.Join(msgs, "; "))
}

// Details implements schema.ValidationDetailer.
func (e *ValidationFailure) Details() map[string]interface{} {
	return map[string]interface{}{
		"contract":   string(e.Contract),
		"violations": e.Errors,
	}
}

func invalidField(contract schema.Contract, field, message string) *ValidationFailure {
	return &ValidationFailure{
		Contract: contract,
		Errors: []*schema.ValidationError{{
			Contract: string(contract),
			Field:    field,
			Message:  message,
		}},
	}
}
