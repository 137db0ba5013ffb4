package crm_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crm-repository/crm"
	"github.com/goliatone/go-crm-repository/repository"
	"github.com/goliatone/go-crm-repository/repositorycache"
)

func TestGeoTag(t *testing.T) {
	tests := []struct {
		lat, lng float64
		expected string
	}{
		{30.27, -97.74, "spots::geo::30.3:-97.7"},
		{30.31, -97.66, "spots::geo::30.3:-97.7"},
		{0.04, -0.04, "spots::geo::0.0:0.0"},
		{51.5, -0.12, "spots::geo::51.5:-0.1"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, crm.GeoTag(tt.lat, tt.lng))
	}
}

func TestSpotGeoTags(t *testing.T) {
	tests := []struct {
		name     string
		method   repositorycache.Method
		args     []any
		expected []string
	}{
		{
			name:     "location search",
			method:   repositorycache.MethodSearch,
			args:     []any{crm.SpotsNearOn(30.27, -97.74, "2026-10-20")},
			expected: []string{"spots::geo::30.3:-97.7"},
		},
		{
			name:     "string coordinates",
			method:   repositorycache.MethodSearch,
			args:     []any{repository.Where("latitude", "30.27").Where("longitude", "-97.74")},
			expected: []string{"spots::geo::30.3:-97.7"},
		},
		{
			name:   "missing longitude",
			method: repositorycache.MethodSearch,
			args:   []any{repository.Where("latitude", 30.27)},
		},
		{
			name:   "range filter",
			method: repositorycache.MethodSearch,
			args:   []any{repository.Criteria{}.Between("latitude", 30, 31).Where("longitude", -97.7)},
		},
		{
			name:   "other method",
			method: repositorycache.MethodFind,
			args:   []any{500},
		},
		{
			name:   "no arguments",
			method: repositorycache.MethodSearch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, crm.SpotGeoTags(tt.method, tt.args...))
		})
	}
}

func TestInt_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input    string
		expected crm.Int
		set      bool
		wantErr  bool
	}{
		{`"42"`, 42, true, false},
		{`42`, 42, true, false},
		{`""`, 0, false, false},
		{`"0"`, 0, false, false},
		{`null`, 0, false, false},
		{`"-1"`, -1, true, false},
		{`" 7 "`, 0, false, true},
		{`"n/a"`, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var v struct {
				N crm.Int `json:"n"`
			}
			err := json.Unmarshal([]byte(`{"n":`+tt.input+`}`), &v)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.N)
			_, set := v.N.Value()
			assert.Equal(t, tt.set, set)
		})
	}
}

func TestFloat_UnmarshalJSON(t *testing.T) {
	var v struct {
		A crm.Float `json:"a"`
		B crm.Float `json:"b"`
		C crm.Float `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.50","b":3.25,"c":""}`), &v))
	assert.Equal(t, crm.Float(12.5), v.A)
	assert.Equal(t, crm.Float(3.25), v.B)
	assert.Equal(t, crm.Float(0), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"abc"}`), &v))
}

func TestEntities_Attributes(t *testing.T) {
	appt := &crm.Appointment{AppointmentID: 10, CustomerID: 1, Type: 7}

	id, ok := appt.Attribute("id")
	assert.True(t, ok)
	assert.Equal(t, 10, id)

	typ, ok := appt.Attribute("type")
	assert.True(t, ok)
	assert.Equal(t, 7, typ)

	_, ok = appt.Attribute("subscriptionID")
	assert.False(t, ok)

	_, ok = appt.Attribute("unknown")
	assert.False(t, ok)

	assert.True(t, appt.Relations().Has("documents"))
	assert.Equal(t, crm.TypeServiceType, appt.Relations()["serviceType"].RelatedType())
	assert.Nil(t, (&crm.Office{}).Relations())
}
