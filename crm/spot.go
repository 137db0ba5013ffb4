package crm

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goliatone/go-crm-repository/repository"
	"github.com/goliatone/go-crm-repository/repositorycache"
)

// Spot search filter fields.
const (
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
	FieldDate      = "date"
)

// SpotsNear returns the criteria of a spot search around a location.
func SpotsNear(lat, lng float64) repository.Criteria {
	return repository.Where(FieldLatitude, lat).Where(FieldLongitude, lng)
}

// SpotsNearOn narrows SpotsNear to the spots of one day (YYYY-MM-DD).
func SpotsNearOn(lat, lng float64, date string) repository.Criteria {
	return SpotsNear(lat, lng).Where(FieldDate, date)
}

// GeoTag returns the tag of the geographic bucket of a location. Coordinates
// are rounded to one decimal, roughly 11km, so nearby searches share a tag.
func GeoTag(lat, lng float64) string {
	return fmt.Sprintf("spots::geo::%s:%s", roundCoordinate(lat), roundCoordinate(lng))
}

// SpotGeoTags tags spot searches carrying a location with their GeoTag.
func SpotGeoTags(method repositorycache.Method, args ...any) []string {
	if method != repositorycache.MethodSearch || len(args) == 0 {
		return nil
	}
	criteria, ok := args[0].(repository.Criteria)
	if !ok {
		return nil
	}

	lat, ok := filterCoordinate(criteria, FieldLatitude)
	if !ok {
		return nil
	}
	lng, ok := filterCoordinate(criteria, FieldLongitude)
	if !ok {
		return nil
	}
	return []string{GeoTag(lat, lng)}
}

func filterCoordinate(criteria repository.Criteria, field string) (float64, bool) {
	f, ok := criteria.Get(field)
	if !ok || f.Operator != repository.OpEqual || len(f.Values) != 1 {
		return 0, false
	}

	switch v := f.Values[0].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case Float:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	}
	return 0, false
}

func roundCoordinate(v float64) string {
	rounded := math.Round(v*10) / 10
	if rounded == 0 {
		rounded = 0 // drops the sign of -0
	}
	return strconv.FormatFloat(rounded, 'f', 1, 64)
}
