package cargo

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	weightPattern      = regexp.MustCompile(`(?i)(\d+)\s*(kilogram|kilo|kg|ton)\b`)
	originPattern      = regexp.MustCompile(`(?is)\bdari\s+(.*?)(?:\b(?:ke|menuju)\b|$)`)
	destinationPattern = regexp.MustCompile(`(?i)\bke\s+([^,]+)`)
	truckTypePattern   = regexp.MustCompile(`(?i)\btru(?:ck|k)\s+(\w+)`)
)

// ExtractedFilters holds whatever structured criteria could be read out of a
// free-text cargo request. Nil fields were not found.
type ExtractedFilters struct {
	Weight      *int    `json:"weight"`
	WeightUnit  string  `json:"weightUnit,omitempty"`
	Origin      *string `json:"origin"`
	Destination *string `json:"destination"`
	TruckType   *string `json:"truckType"`
	HasFilters  bool    `json:"hasFilters"`
}

// ExtractFilters reads weight, route and truck type from an Indonesian cargo
// request such as "Kirim barang dari Jakarta ke Surabaya, 1000kg, truk box".
// Every field is matched independently and the leftmost match wins. The
// weight number is taken as written whatever its unit.
func ExtractFilters(query string) ExtractedFilters {
	var f ExtractedFilters

	if m := weightPattern.FindStringSubmatch(query); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			f.Weight = &n
			f.WeightUnit = strings.ToLower(m[2])
		}
	}
	if m := originPattern.FindStringSubmatch(query); m != nil {
		f.Origin = nonEmpty(m[1])
	}
	if m := destinationPattern.FindStringSubmatch(query); m != nil {
		f.Destination = nonEmpty(m[1])
	}
	if m := truckTypePattern.FindStringSubmatch(query); m != nil {
		f.TruckType = nonEmpty(strings.ToLower(m[1]))
	}

	f.HasFilters = f.Weight != nil || f.Origin != nil || f.Destination != nil || f.TruckType != nil
	return f
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// FilterSet converts the extracted values into filter criteria.
func (f ExtractedFilters) FilterSet() FilterSet {
	var fs FilterSet
	if f.Weight != nil {
		w := float64(*f.Weight)
		fs.Weight = &w
	}
	fs.Origin = f.Origin
	fs.Destination = f.Destination
	fs.TruckType = f.TruckType
	return fs
}
