package functions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAddressParts(t *testing.T) {
	tests := []struct {
		addr    string
		city    string
		country string
		ok      bool
	}{
		{"Raadhuisstraat (2401231509), Amsterdam, 3036, NO", "Amsterdam", "NO", true},
		{`"Rua A, 10", São Paulo, 01000-000, BR`, "São Paulo", "BR", true},
		{"Amsterdam, NL", "", "NL", false},
		{"", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.addr, func(t *testing.T) {
			city, ok := ExtractCity(tc.addr)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.city, city)
			country, ok := ExtractCountry(tc.addr)
			assert.Equal(t, tc.country != "", ok)
			assert.Equal(t, tc.country, country)
		})
	}
}

func TestLookup(t *testing.T) {
	fn, err := Lookup("EXTRACT_CITY")
	require.NoError(t, err)
	assert.Equal(t, "extract_city", fn.Name)

	_, err = Lookup("upper")
	require.ErrorIs(t, err, ErrUnknownFunction)
	assert.Equal(t, []string{"extract_city", "extract_country"}, Names())
}
