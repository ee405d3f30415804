package cargo

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

// ListingSource is the read side the pipeline needs from the listing store.
type ListingSource interface {
	ListAll(ctx context.Context) ([]models.Listing, error)
}

// RequestFilters are criteria a client sends alongside the free-text query.
// Any field set here replaces the value extracted from the query.
type RequestFilters struct {
	Weight      *float64 `json:"weight"`
	MinWeight   *float64 `json:"minWeight"`
	Origin      *string  `json:"origin"`
	Destination *string  `json:"destination"`
	TruckType   *string  `json:"truckType"`
}

type RecommendRequest struct {
	Query   string          `json:"query"`
	Filters *RequestFilters `json:"filters"`
}

type Recommender struct {
	listings ListingSource
	composer *Composer
	log      *zap.Logger
}

func NewRecommender(listings ListingSource, composer *Composer, log *zap.Logger) *Recommender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recommender{listings: listings, composer: composer, log: log}
}

// Recommend runs extract, filter and compose for one request. A request with
// neither query text nor filters is answered from the local ranking, since
// there is nothing for the model to reason about. Only a store failure is
// returned as an error.
func (r *Recommender) Recommend(ctx context.Context, req RecommendRequest) (RecommendationResult, error) {
	extracted := ExtractFilters(req.Query)
	if extracted.WeightUnit == "ton" {
		r.log.Warn("weight given in tons is compared as kilograms",
			zap.Intp("weight", extracted.Weight),
			zap.String("query", req.Query),
		)
	}
	filters := MergeFilters(extracted.FilterSet(), req.Filters)

	all, err := r.listings.ListAll(ctx)
	if err != nil {
		return RecommendationResult{}, fmt.Errorf("load listings: %w", err)
	}

	candidates := FilterListings(all, filters)
	r.log.Debug("cargo candidates filtered",
		zap.Bool("hasFilters", !filters.IsEmpty()),
		zap.Int("listings", len(all)),
		zap.Int("candidates", len(candidates)),
	)
	if strings.TrimSpace(req.Query) == "" && filters.IsEmpty() {
		return r.composer.ComposeLocal(candidates), nil
	}
	return r.composer.Compose(ctx, req.Query, candidates), nil
}

// MergeFilters overlays explicit request filters on the extracted ones, field
// by field. Blank explicit strings do not override. Weight takes precedence
// over MinWeight.
func MergeFilters(base FilterSet, explicit *RequestFilters) FilterSet {
	if explicit == nil {
		return base
	}
	merged := base
	switch {
	case explicit.Weight != nil:
		merged.Weight = explicit.Weight
	case explicit.MinWeight != nil:
		merged.Weight = explicit.MinWeight
	}
	if s := explicit.Origin; s != nil && strings.TrimSpace(*s) != "" {
		merged.Origin = s
	}
	if s := explicit.Destination; s != nil && strings.TrimSpace(*s) != "" {
		merged.Destination = s
	}
	if s := explicit.TruckType; s != nil && strings.TrimSpace(*s) != "" {
		merged.TruckType = s
	}
	return merged
}
