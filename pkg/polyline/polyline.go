// Package polyline implements Google's encoded polyline format at the
// standard 1e-5 precision. Journey GPS traces are stored in this encoding
// for map display in review tooling.
package polyline

import "math"

// Point is a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Encode encodes points into a polyline string.
func Encode(points []Point) string {
	if len(points) == 0 {
		return ""
	}

	out := make([]byte, 0, len(points)*6)
	prevLat, prevLon := 0, 0

	for _, p := range points {
		lat := int(math.Round(p.Lat * 1e5))
		lon := int(math.Round(p.Lon * 1e5))
		out = appendValue(out, lat-prevLat)
		out = appendValue(out, lon-prevLon)
		prevLat, prevLon = lat, lon
	}

	return string(out)
}

// Decode decodes a polyline string into points. Returns nil for an empty
// or truncated input tail.
func Decode(encoded string) []Point {
	var points []Point
	lat, lon := 0, 0
	i := 0

	for i < len(encoded) {
		dLat, next, ok := readValue(encoded, i)
		if !ok {
			break
		}
		dLon, after, ok := readValue(encoded, next)
		if !ok {
			break
		}
		i = after
		lat += dLat
		lon += dLon
		points = append(points, Point{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
	}

	return points
}

func appendValue(out []byte, v int) []byte {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		out = append(out, byte((0x20|(u&0x1f))+63))
		u >>= 5
	}
	return append(out, byte(u+63))
}

func readValue(s string, i int) (value, next int, ok bool) {
	result, shift := 0, 0
	for {
		if i >= len(s) {
			return 0, i, false
		}
		b := int(s[i]) - 63
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), i, true
	}
	return result >> 1, i, true
}
