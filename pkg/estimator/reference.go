package estimator

import (
	"context"
	"time"

	"BodyMeasure/internal/entity"
)

type anchor struct {
	name  string
	value float64
	unit  string
	label [2]float64
	line  [2][2]float64
}

// Fractions of the reference image size.
var referenceAnchors = []anchor{
	{
		name:  "chest",
		value: 118.68,
		unit:  "cm",
		label: [2]float64{0.50, 0.35},
		line:  [2][2]float64{{0.20, 0.40}, {0.80, 0.40}},
	},
	{
		name:  "waist",
		value: 108.99,
		unit:  "cm",
		label: [2]float64{0.50, 0.55},
		line:  [2][2]float64{{0.25, 0.60}, {0.75, 0.60}},
	},
}

type referenceEstimator struct {
	latency time.Duration
}

// NewReference returns the stand-in model: it waits latency, then reports
// fixed chest and waist measurements placed proportionally on the image.
func NewReference(latency time.Duration) Estimator {
	return &referenceEstimator{latency: latency}
}

func (e *referenceEstimator) Name() string {
	return "reference"
}

func (e *referenceEstimator) Estimate(ctx context.Context, views []entity.View) ([]entity.PixelMeasurement, error) {
	ref, err := ReferenceView(views)
	if err != nil {
		return nil, err
	}

	if e.latency > 0 {
		timer := time.NewTimer(e.latency)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	w, h := float64(ref.Width), float64(ref.Height)
	measurements := make([]entity.PixelMeasurement, 0, len(referenceAnchors))
	for _, a := range referenceAnchors {
		measurements = append(measurements, entity.PixelMeasurement{
			Name:  a.name,
			Value: a.value,
			Unit:  a.unit,
			Label: entity.PixelPoint{X: a.label[0] * w, Y: a.label[1] * h},
			Line: [2]entity.PixelPoint{
				{X: a.line[0][0] * w, Y: a.line[0][1] * h},
				{X: a.line[1][0] * w, Y: a.line[1][1] * h},
			},
		})
	}

	return measurements, nil
}
