// Package estimator holds the measurement procedures behind /measure.
//
// An Estimator reports metrics in the pixel space of the reference view,
// which is the front view when present and the first view otherwise. The
// caller owns normalization to percentages.
package estimator

import (
	"context"
	"errors"

	"BodyMeasure/internal/entity"
)

var ErrNoViews = errors.New("estimator: no views supplied")

type Estimator interface {
	Name() string
	Estimate(ctx context.Context, views []entity.View) ([]entity.PixelMeasurement, error)
}

// ReferenceView picks the view whose pixel space anchors are expressed in.
func ReferenceView(views []entity.View) (entity.View, error) {
	if len(views) == 0 {
		return entity.View{}, ErrNoViews
	}
	for _, v := range views {
		if v.Viewpoint == entity.FrontView {
			return v, nil
		}
	}
	return views[0], nil
}
