package journey

import "time"

// Submission is the payload shape the mobility backend accepts for a
// finished, user-confirmed journey. The API client that actually performs
// the upload lives outside this module; the core only builds the payload
// and records acceptance via MarkSent.
type Submission struct {
	PlaceDeparture  string  `json:"place_departure"`
	PlaceArrival    string  `json:"place_arrival"`
	TimeDeparture   string  `json:"time_departure"`
	TimeArrival     string  `json:"time_arrival"`
	DistanceKm      float64 `json:"distance_km"`
	TransportType   string  `json:"transport_type"`
	DetectionSource string  `json:"detection_source"`
}

// BuildSubmission converts a journey into the backend submission payload.
// Times are ISO8601 in UTC.
func BuildSubmission(j *LocalJourney) Submission {
	return Submission{
		PlaceDeparture:  j.PlaceDeparture,
		PlaceArrival:    j.PlaceArrival,
		TimeDeparture:   j.TimeDeparture.UTC().Format(time.RFC3339),
		TimeArrival:     j.TimeArrival.UTC().Format(time.RFC3339),
		DistanceKm:      j.DistanceKm,
		TransportType:   string(j.DetectedTransportType),
		DetectionSource: string(j.DetectionSource),
	}
}
