package transport

type RegisterLotRequest struct {
	ProduceType  string  `json:"produce_type"`
	Variety      string  `json:"variety"`
	Quantity     float64 `json:"quantity"`
	QualityGrade string  `json:"quality_grade"`
}

// AppendEventRequest is posted to /lots/{id}/events; the lot comes from the path.
type AppendEventRequest struct {
	FacilityID string  `json:"facility_id"`
	Status     string  `json:"status"`
	Quantity   float64 `json:"quantity"`
	Notes      string  `json:"notes"`
}

type CreateFacilityRequest struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Location string  `json:"location"`
	Capacity float64 `json:"capacity"`
}
