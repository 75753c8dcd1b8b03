package entity

type Viewpoint string

const (
	FrontView Viewpoint = "front"
	SideView  Viewpoint = "side"
)

type UploadShape string

const (
	SingleUpload    UploadShape = "single"
	MultiViewUpload UploadShape = "multi_view"
)

// Artifact is one uploaded form file, held only for the request.
type Artifact struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// UploadSet carries the artifacts of one /measure call keyed by form field.
type UploadSet struct {
	Shape     UploadShape
	Artifacts map[string]Artifact
}

// View is a checked viewpoint. Width and Height are the pixel size of the
// image and define the coordinate space of estimator anchors. Raw keeps the
// uploaded bytes for estimators that forward them.
type View struct {
	Viewpoint Viewpoint
	Raw       []byte
	Format    string
	Width     int
	Height    int
	Depth     []byte
}

type PixelPoint struct {
	X float64 `json:"x" validate:"gte=0"`
	Y float64 `json:"y" validate:"gte=0"`
}

// PixelMeasurement is one metric in the pixel space of the reference view.
type PixelMeasurement struct {
	Name  string        `json:"name" validate:"required"`
	Value float64       `json:"value" validate:"gt=0"`
	Unit  string        `json:"unit" validate:"required"`
	Label PixelPoint    `json:"label"`
	Line  [2]PixelPoint `json:"line" validate:"dive"`
}
