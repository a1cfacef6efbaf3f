package delivery

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/aderut/moridam/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFee(t *testing.T) {
	assert.Equal(t, 500.0, Fee(0))
	assert.Equal(t, 2000.0, Fee(10))
	assert.Equal(t, 1138.0, Fee(4.25))
}

func TestCoordinatesValidate(t *testing.T) {
	assert.NoError(t, Coordinates{Lng: 7.01, Lat: 4.8}.Validate())

	for _, c := range []Coordinates{
		{Lng: 181, Lat: 0},
		{Lng: 0, Lat: -91},
		{Lng: math.NaN(), Lat: 0},
		{Lng: 0, Lat: math.Inf(1)},
	} {
		assert.True(t, domain.IsValidation(c.Validate()), "%+v", c)
	}
}

func TestCoordinatesJSON(t *testing.T) {
	var c Coordinates
	require.NoError(t, json.Unmarshal([]byte(`[7.0134, 4.8242]`), &c))
	assert.Equal(t, Coordinates{Lng: 7.0134, Lat: 4.8242}, c)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `[7.0134, 4.8242]`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`[7.0134]`), &c))
	assert.Error(t, json.Unmarshal([]byte(`{"lng": 1}`), &c))
}
