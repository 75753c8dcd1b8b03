package measurement

// Form fields accepted by POST /measure.
const (
	FieldFile       = "file"
	FieldImageFront = "image_front"
	FieldDepthFront = "depth_front"
	FieldImageSide  = "image_side"
	FieldDepthSide  = "depth_side"
)

// MultiViewFields is the required field set of the multi-view shape, in the
// order missing fields are reported.
var MultiViewFields = []string{FieldImageFront, FieldDepthFront, FieldImageSide, FieldDepthSide}

// PointPct is a position as a percentage of the reference image width and
// height, each in [0, 100].
type PointPct struct {
	XPct float64 `json:"x_pct"`
	YPct float64 `json:"y_pct"`
}

type Metric struct {
	Value         float64     `json:"value"`
	Unit          string      `json:"unit"`
	TextPosition  PointPct    `json:"text_position"`
	LinePointsPct [2]PointPct `json:"line_points_pct"`
}

// MeasurementResult maps metric names such as "chest" to their metric.
type MeasurementResult map[string]Metric

type StatusResponse struct {
	Status string `json:"status"`
}

const LivenessStatus = "Model server is running"
