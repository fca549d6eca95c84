package models

import (
	"github.com/greenmobilitypass/tripdetect/internal/journey"
)

// Journey is the API representation of a stored journey.
type Journey struct {
	ID                 string     `json:"id"`
	TimeDeparture      Timestamp  `json:"timeDeparture"`
	TimeArrival        Timestamp  `json:"timeArrival"`
	DurationMinutes    int        `json:"durationMinutes"`
	DistanceKm         float64    `json:"distanceKm"`
	TransportType      string     `json:"transportType"`
	ConfidenceAvg      int        `json:"confidenceAvg"`
	PlaceDeparture     string     `json:"placeDeparture,omitempty"`
	PlaceArrival       string     `json:"placeArrival,omitempty"`
	Start              *Point     `json:"start,omitempty"`
	End                *Point     `json:"end,omitempty"`
	IsGpsBasedDistance bool       `json:"isGpsBasedDistance"`
	GpsPointsCount     int        `json:"gpsPointsCount"`
	GpsTrace           string     `json:"gpsTrace,omitempty"`
	DetectionSource    string     `json:"detectionSource"`
	Status             string     `json:"status"`
	CreatedAt          Timestamp  `json:"createdAt"`
	UpdatedAt          Timestamp  `json:"updatedAt"`
}

// JourneyFromDomain converts a stored journey to its API representation.
func JourneyFromDomain(j *journey.LocalJourney) Journey {
	out := Journey{
		ID:                 j.ID,
		TimeDeparture:      Timestamp(j.TimeDeparture),
		TimeArrival:        Timestamp(j.TimeArrival),
		DurationMinutes:    j.DurationMinutes,
		DistanceKm:         j.DistanceKm,
		TransportType:      string(j.DetectedTransportType),
		ConfidenceAvg:      j.ConfidenceAvg,
		PlaceDeparture:     j.PlaceDeparture,
		PlaceArrival:       j.PlaceArrival,
		IsGpsBasedDistance: j.IsGpsBasedDistance,
		GpsPointsCount:     j.GpsPointsCount,
		GpsTrace:           j.GpsTrace,
		DetectionSource:    string(j.DetectionSource),
		Status:             string(j.Status),
		CreatedAt:          Timestamp(j.CreatedAt),
		UpdatedAt:          Timestamp(j.UpdatedAt),
	}
	if j.StartLat != nil && j.StartLon != nil {
		out.Start = &Point{Lat: *j.StartLat, Lon: *j.StartLon}
	}
	if j.EndLat != nil && j.EndLon != nil {
		out.End = &Point{Lat: *j.EndLat, Lon: *j.EndLon}
	}
	return out
}

// JourneyList is a list of journeys with a total count.
type JourneyList struct {
	Items []Journey `json:"items"`
	Count int       `json:"count"`
}

// JourneyListFromDomain converts a journey slice to its API representation.
func JourneyListFromDomain(journeys []*journey.LocalJourney) JourneyList {
	items := make([]Journey, 0, len(journeys))
	for _, j := range journeys {
		items = append(items, JourneyFromDomain(j))
	}
	return JourneyList{Items: items, Count: len(items)}
}

// JourneyCreateRequest is a manually entered journey.
type JourneyCreateRequest struct {
	TimeDeparture  Timestamp `json:"timeDeparture"`
	TimeArrival    Timestamp `json:"timeArrival"`
	DistanceKm     float64   `json:"distanceKm"`
	TransportType  string    `json:"transportType"`
	PlaceDeparture string    `json:"placeDeparture,omitempty"`
	PlaceArrival   string    `json:"placeArrival,omitempty"`
}

// JourneyUpdateRequest carries review corrections; absent fields are left
// unchanged.
type JourneyUpdateRequest struct {
	TransportType  *string  `json:"transportType,omitempty"`
	DistanceKm     *float64 `json:"distanceKm,omitempty"`
	PlaceDeparture *string  `json:"placeDeparture,omitempty"`
	PlaceArrival   *string  `json:"placeArrival,omitempty"`
}
