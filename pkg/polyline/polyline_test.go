package polyline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenmobilitypass/tripdetect/pkg/polyline"
)

func TestEncode_ReferenceVector(t *testing.T) {
	// Reference example from the Google polyline documentation.
	points := []polyline.Point{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}

	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", polyline.Encode(points))
}

func TestDecode_ReferenceVector(t *testing.T) {
	points := polyline.Decode("_p~iF~ps|U_ulLnnqC_mqNvxq`@")

	require.Len(t, points, 3)
	assert.InDelta(t, 38.5, points[0].Lat, 1e-5)
	assert.InDelta(t, -120.2, points[0].Lon, 1e-5)
	assert.InDelta(t, 43.252, points[2].Lat, 1e-5)
	assert.InDelta(t, -126.453, points[2].Lon, 1e-5)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	points := []polyline.Point{
		{Lat: 48.8566, Lon: 2.3522},
		{Lat: 48.857, Lon: 2.3534},
		{Lat: 48.8581, Lon: 2.3544},
		{Lat: -33.8688, Lon: 151.2093},
	}

	decoded := polyline.Decode(polyline.Encode(points))
	require.Len(t, decoded, len(points))
	for i := range points {
		assert.InDelta(t, points[i].Lat, decoded[i].Lat, 1e-5)
		assert.InDelta(t, points[i].Lon, decoded[i].Lon, 1e-5)
	}
}

func TestEncode_Empty(t *testing.T) {
	assert.Equal(t, "", polyline.Encode(nil))
	assert.Nil(t, polyline.Decode(""))
}
