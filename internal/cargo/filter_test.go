package cargo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

func floatp(f float64) *float64 { return &f }

func sampleListings() []models.Listing {
	return []models.Listing{
		{ID: "a", Origin: "Jakarta Pusat", Destination: "Surabaya", TruckType: models.TruckBox, MaxWeight: 1500, Price: 2000000},
		{ID: "b", Origin: "Jakarta", Destination: "Bali", TruckType: models.TruckPickup, MaxWeight: 500, Price: 900000},
		{ID: "c", Origin: "Bandung", Destination: "Surabaya", TruckType: models.TruckFlatbed, MaxWeight: 3000, Price: 3500000},
		{ID: "d", Origin: "jakarta utara", Destination: "surabaya timur", TruckType: models.TruckBox, MaxWeight: 1000, Price: 1800000},
	}
}

func ids(listings []models.Listing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}

func TestFilterListings(t *testing.T) {
	tests := []struct {
		name   string
		filter FilterSet
		want   []string
	}{
		{"no filters returns everything", FilterSet{}, []string{"a", "b", "c", "d"}},
		{"weight is a minimum capacity", FilterSet{Weight: floatp(1000)}, []string{"a", "c", "d"}},
		{"truck type is exact and case insensitive", FilterSet{TruckType: strp("BOX")}, []string{"a", "d"}},
		{"truck type is not a substring match", FilterSet{TruckType: strp("bo")}, []string{}},
		{"origin is a substring match", FilterSet{Origin: strp("jakarta")}, []string{"a", "b", "d"}},
		{"destination is a substring match", FilterSet{Destination: strp("SURABAYA")}, []string{"a", "c", "d"}},
		{
			"all criteria combine",
			FilterSet{Weight: floatp(1200), TruckType: strp("box"), Origin: strp("Jakarta"), Destination: strp("Surabaya")},
			[]string{"a"},
		},
		{"punctuation is trimmed", FilterSet{Destination: strp(" Bali. ")}, []string{"b"}},
		{"blank after trimming is absent", FilterSet{Origin: strp(" ,. ")}, []string{"a", "b", "c", "d"}},
		{"nothing matches", FilterSet{Origin: strp("Makassar")}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterListings(sampleListings(), tt.filter)))
		})
	}
}

func TestFilterListingsWeightScenario(t *testing.T) {
	listings := []models.Listing{
		{ID: "light", MaxWeight: 500},
		{ID: "heavy", MaxWeight: 1500},
	}
	got := FilterListings(listings, FilterSet{Weight: floatp(1000)})
	assert.Equal(t, []string{"heavy"}, ids(got))
}

func TestFilterListingsDoesNotMutateInput(t *testing.T) {
	in := sampleListings()
	before := sampleListings()

	out := FilterListings(in, FilterSet{})
	assert.Equal(t, before, in)

	out[0].Origin = "changed"
	assert.Equal(t, "Jakarta Pusat", in[0].Origin)
}

func TestFilterListingsIsIdempotent(t *testing.T) {
	f := FilterSet{Weight: floatp(800), Destination: strp("surabaya")}
	once := FilterListings(sampleListings(), f)
	twice := FilterListings(once, f)
	assert.Equal(t, once, twice)
}

func TestFilterListingsEmptyInput(t *testing.T) {
	got := FilterListings(nil, FilterSet{Origin: strp("Jakarta")})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
