package dmp

import (
	v1 "github.com/dmphub-lab/dmphub/internal/api/v1"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Mutation is an update request after contract validation: either a full
// document from the owning provenance or an amendment from anyone else.
type Mutation interface {
	isMutation()
}

// OwnerMutation carries a document validated under the author contract.
type OwnerMutation struct {
	Document *v1.AuthorDocument
}

// AmendMutation carries a document validated under the amend contract.
type AmendMutation struct {
	Document *v1.AmendDocument
}

func (OwnerMutation) isMutation() {}
func (AmendMutation) isMutation() {}

// splice merges an incoming mutation into the current version. The result
// keeps the current identifier and creation time; Modified is left for the
// caller to stamp.
func splice(current *v1.DMP, caller string, m Mutation) *v1.DMP {
	switch m := m.(type) {
	case OwnerMutation:
		return spliceOwner(current, caller, &m.Document.DMP)
	case AmendMutation:
		return spliceAmend(current, caller, m.Document)
	default:
		return current
	}
}

// spliceOwner takes the incoming document as the new base. Related
// identifiers other provenances contributed are carried forward unless the
// owner restated them, in which case they keep their contributor.
func spliceOwner(current *v1.DMP, owner string, incoming *v1.DMP) *v1.DMP {
	merged := *incoming
	merged.DmpID = current.DmpID
	merged.Created = current.Created
	merged.Modified = current.Modified

	contributedBy := make(map[string]string, len(current.RelatedIdentifiers))
	for _, r := range current.RelatedIdentifiers {
		contributedBy[r.Key()] = r.Provenance
	}

	related := make([]v1.RelatedIdentifier, 0, len(incoming.RelatedIdentifiers)+len(current.RelatedIdentifiers))
	restated := make(map[string]bool, len(incoming.RelatedIdentifiers))
	for _, r := range incoming.RelatedIdentifiers {
		if restated[r.Key()] {
			continue
		}
		restated[r.Key()] = true
		r.Provenance = owner
		if prov, ok := contributedBy[r.Key()]; ok && prov != "" {
			r.Provenance = prov
		}
		related = append(related, r)
	}
	for _, r := range current.RelatedIdentifiers {
		if r.Provenance == owner || restated[r.Key()] {
			continue
		}
		related = append(related, r)
	}

	merged.RelatedIdentifiers = nilIfEmpty(related)
	return &merged
}

// spliceAmend keeps the current version as the base and only overlays the
// caller's related identifiers: its earlier entries are replaced or dropped,
// new ones are appended, entries of other provenances are left alone.
func spliceAmend(current *v1.DMP, caller string, incoming *v1.AmendDocument) *v1.DMP {
	merged := *current

	wanted := make(map[string]v1.RelatedIdentifier, len(incoming.RelatedIdentifiers))
	var order []string
	for _, r := range incoming.RelatedIdentifiers {
		if _, dup := wanted[r.Key()]; dup {
			continue
		}
		r.Provenance = caller
		wanted[r.Key()] = r
		order = append(order, r.Key())
	}

	used := make(map[string]bool, len(wanted))
	related := make([]v1.RelatedIdentifier, 0, len(current.RelatedIdentifiers)+len(wanted))
	for _, r := range current.RelatedIdentifiers {
		replacement, requested := wanted[r.Key()]
		switch {
		case r.Provenance != caller:
			used[r.Key()] = used[r.Key()] || requested
			related = append(related, r)
		case requested && !used[r.Key()]:
			used[r.Key()] = true
			related = append(related, replacement)
		}
	}
	for _, key := range order {
		if !used[key] {
			related = append(related, wanted[key])
		}
	}

	merged.RelatedIdentifiers = nilIfEmpty(related)
	return &merged
}

// unchanged compares two versions of a plan, ignoring Modified.
func unchanged(a, b *v1.DMP) bool {
	return cmp.Equal(a, b,
		cmpopts.IgnoreFields(v1.DMP{}, "Modified"),
		cmpopts.EquateEmpty(),
	)
}

func nilIfEmpty(r []v1.RelatedIdentifier) []v1.RelatedIdentifier {
	if len(r) == 0 {
		return nil
	}
	return r
}
