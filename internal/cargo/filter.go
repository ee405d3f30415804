package cargo

import (
	"strings"
	"unicode"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

// FilterSet is the set of criteria a listing must satisfy. Nil fields impose
// no constraint.
type FilterSet struct {
	Weight      *float64
	TruckType   *string
	Origin      *string
	Destination *string
}

// IsEmpty reports whether no criterion survives normalisation.
func (f FilterSet) IsEmpty() bool {
	n := f.normalized()
	return n.weight == nil && n.truckType == "" && n.origin == "" && n.destination == ""
}

type normalizedFilters struct {
	weight      *float64
	truckType   string
	origin      string
	destination string
}

func (f FilterSet) normalized() normalizedFilters {
	return normalizedFilters{
		weight:      f.Weight,
		truckType:   normalizeTerm(f.TruckType),
		origin:      normalizeTerm(f.Origin),
		destination: normalizeTerm(f.Destination),
	}
}

// normalizeTerm lower-cases s and strips surrounding whitespace and
// punctuation, so "Surabaya." and " surabaya" compare equal.
func normalizeTerm(s *string) string {
	if s == nil {
		return ""
	}
	trimmed := strings.TrimFunc(*s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return strings.ToLower(trimmed)
}

// FilterListings returns the listings satisfying every criterion in f, in
// their original order. The input slice is never modified and the result is
// always a fresh, non-nil slice.
func FilterListings(listings []models.Listing, f FilterSet) []models.Listing {
	n := f.normalized()
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if n.matches(l) {
			out = append(out, l)
		}
	}
	return out
}

func (n normalizedFilters) matches(l models.Listing) bool {
	if n.weight != nil && l.MaxWeight < *n.weight {
		return false
	}
	if n.truckType != "" && !strings.EqualFold(string(l.TruckType), n.truckType) {
		return false
	}
	if n.origin != "" && !strings.Contains(strings.ToLower(l.Origin), n.origin) {
		return false
	}
	if n.destination != "" && !strings.Contains(strings.ToLower(l.Destination), n.destination) {
		return false
	}
	return true
}
