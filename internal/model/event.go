package model

// TickEvent records one satisfied interval boundary.
type TickEvent struct {
	ID         string `json:"id"`
	Schedule   string `json:"schedule"`
	Unit       string `json:"unit"`
	Period     uint16 `json:"period"`
	BoundaryMS int64  `json:"boundary_ms"`
	FiredAtMS  int64  `json:"fired_at_ms"`
	DriftMS    int64  `json:"drift_ms"`
	Sequence   uint64 `json:"sequence"`
	Error      string `json:"error,omitempty"`
}
