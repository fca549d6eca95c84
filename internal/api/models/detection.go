package models

// DetectionStatus describes the detection pipeline at a point in time.
type DetectionStatus struct {
	Running       bool      `json:"running"`
	Degraded      bool      `json:"degraded"`
	State         string    `json:"state"`
	DebugMode     bool      `json:"debugMode"`
	PendingCount  int       `json:"pendingCount"`
	UnsavedCount  int       `json:"unsavedCount"`
	DroppedEvents int64     `json:"droppedEvents"`
	Time          Timestamp `json:"time"`
}

// DebugModeRequest toggles diagnostic event fan-out.
type DebugModeRequest struct {
	Enabled bool `json:"enabled"`
}

// SimulateTripRequest injects a synthetic completed trip.
type SimulateTripRequest struct {
	TransportType   string `json:"transportType"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
}

// ActivityIngest is one raw activity-recognition transition from the host.
type ActivityIngest struct {
	Activity             string `json:"activity"`
	Transition           string `json:"transition"`
	ElapsedRealtimeNanos int64  `json:"elapsedRealtimeNanos,omitempty"`
	Confidence           int    `json:"confidence"`
}

// LocationIngest is one raw GPS fix from the host.
type LocationIngest struct {
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	AccuracyMeters  float32 `json:"accuracyMeters"`
	TimestampMillis int64   `json:"timestampMillis,omitempty"`
}
