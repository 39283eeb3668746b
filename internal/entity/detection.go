package entity

type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OrientedBox keeps the rotated geometry reported by an OBB model. Angle is in radians.
type OrientedBox struct {
	CX      float64  `json:"cx"`
	CY      float64  `json:"cy"`
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Angle   float64  `json:"angle"`
	Corners [4]Point `json:"corners"`
}

type Detection struct {
	Label      string       `json:"label"`
	Confidence float64      `json:"confidence"`
	Box        Box          `json:"box"`
	OBB        *OrientedBox `json:"obb,omitempty"`
}

type ImageInfo struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Filename string `json:"filename"`
}

type DetectionResult struct {
	Detections []Detection `json:"detections"`
	ImageInfo  *ImageInfo  `json:"image_info,omitempty"`
}

type ServiceStatus struct {
	Status      string   `json:"status"`
	Model       string   `json:"model"`
	ModelLoaded bool     `json:"model_loaded"`
	Classes     []string `json:"classes"`
}

type HealthStatus struct {
	Status      string `json:"status"`
	ModelStatus string `json:"model_status"`
}

type DetectionStats struct {
	Enabled    bool             `json:"enabled"`
	Requests   int64            `json:"requests"`
	Detections int64            `json:"detections"`
	Labels     map[string]int64 `json:"labels,omitempty"`
	Backends   map[string]int64 `json:"backends,omitempty"`
}
