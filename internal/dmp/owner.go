package dmp

import (
	"strings"

	v1 "github.com/dmphub-lab/dmphub/internal/api/v1"
)

// OwnerOrg infers the organization a plan belongs to: the contact's
// affiliation when it has an identifier, otherwise the affiliation
// identifier most frequent among contributors. Ties go to the identifier
// seen first.
func OwnerOrg(d *v1.DMP) (string, error) {
	if id := affiliationID(d.Contact.Affiliation); id != "" {
		return id, nil
	}

	counts := make(map[string]int)
	var order []string
	for _, c := range d.Contributors {
		id := affiliationID(c.Affiliation)
		if id == "" {
			continue
		}
		if _, seen := counts[id]; !seen {
			order = append(order, id)
		}
		counts[id]++
	}

	best := ""
	for _, id := range order {
		if counts[id] > counts[best] {
			best = id
		}
	}
	if best == "" {
		return "", ErrNoOwnerOrganization
	}
	return best, nil
}

func affiliationID(a *v1.Affiliation) string {
	if a == nil || a.AffiliationID == nil {
		return ""
	}
	return strings.TrimSpace(a.AffiliationID.Identifier)
}
