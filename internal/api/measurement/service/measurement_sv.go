package measurementService

import (
	"BodyMeasure/internal/api/measurement"
	"BodyMeasure/internal/entity"
	"BodyMeasure/pkg/estimator"
	"BodyMeasure/pkg/imaging"
	"BodyMeasure/pkg/log"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// ResolveShape checks the artifact set against the two accepted field sets
// and records the matching shape on upload.
func ResolveShape(upload *entity.UploadSet) error {
	_, hasFile := upload.Artifacts[measurement.FieldFile]

	var present []string
	for _, field := range measurement.MultiViewFields {
		if _, ok := upload.Artifacts[field]; ok {
			present = append(present, field)
		}
	}

	switch {
	case hasFile && len(present) > 0:
		return fmt.Errorf("%w: %s cannot be combined with %s", measurement.ErrInvalidUploadShape, measurement.FieldFile, present[0])
	case hasFile:
		upload.Shape = entity.SingleUpload
	case len(present) > 0:
		for _, field := range measurement.MultiViewFields {
			if _, ok := upload.Artifacts[field]; !ok {
				return fmt.Errorf("%w: %s", measurement.ErrMissingArtifact, field)
			}
		}
		upload.Shape = entity.MultiViewUpload
	default:
		return fmt.Errorf("%w: %s", measurement.ErrMissingArtifact, measurement.FieldFile)
	}

	for field, artifact := range upload.Artifacts {
		if len(artifact.Data) == 0 {
			return fmt.Errorf("%w: %s", measurement.ErrEmptyArtifact, field)
		}
	}

	return nil
}

// Normalize converts a pixel-space measurement into percentages of a
// width x height image. Anchors outside the image are an estimator fault.
func Normalize(m entity.PixelMeasurement, width, height int) (measurement.Metric, error) {
	if width <= 0 || height <= 0 {
		return measurement.Metric{}, fmt.Errorf("invalid reference size %dx%d", width, height)
	}

	toPct := func(p entity.PixelPoint) (measurement.PointPct, error) {
		pt := measurement.PointPct{
			XPct: 100 * p.X / float64(width),
			YPct: 100 * p.Y / float64(height),
		}
		if !inPercentRange(pt.XPct) || !inPercentRange(pt.YPct) {
			return pt, fmt.Errorf("%s anchor (%g, %g) lies outside %dx%d", m.Name, p.X, p.Y, width, height)
		}
		return pt, nil
	}

	text, err := toPct(m.Label)
	if err != nil {
		return measurement.Metric{}, err
	}
	start, err := toPct(m.Line[0])
	if err != nil {
		return measurement.Metric{}, err
	}
	end, err := toPct(m.Line[1])
	if err != nil {
		return measurement.Metric{}, err
	}

	return measurement.Metric{
		Value:         m.Value,
		Unit:          m.Unit,
		TextPosition:  text,
		LinePointsPct: [2]measurement.PointPct{start, end},
	}, nil
}

func inPercentRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

func (s *measurementService) Measure(ctx context.Context, upload entity.UploadSet) (measurement.MeasurementResult, error) {
	if err := ResolveShape(&upload); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	views, err := s.decodeViews(ctx, upload)
	if err != nil {
		return nil, err
	}

	ref, err := estimator.ReferenceView(views)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", measurement.ErrProcessingFailed, err)
	}

	pixels, err := s.estimate(ctx, views)
	if err != nil {
		return nil, err
	}

	return s.assemble(ctx, pixels, ref)
}

func (s *measurementService) decodeViews(ctx context.Context, upload entity.UploadSet) ([]entity.View, error) {
	type viewFields struct {
		viewpoint entity.Viewpoint
		image     string
		depth     string
	}

	var layout []viewFields
	if upload.Shape == entity.SingleUpload {
		layout = []viewFields{{viewpoint: entity.FrontView, image: measurement.FieldFile}}
	} else {
		layout = []viewFields{
			{viewpoint: entity.FrontView, image: measurement.FieldImageFront, depth: measurement.FieldDepthFront},
			{viewpoint: entity.SideView, image: measurement.FieldImageSide, depth: measurement.FieldDepthSide},
		}
	}

	views := make([]entity.View, len(layout))
	g, gctx := errgroup.WithContext(ctx)
	for i, vf := range layout {
		i, vf := i, vf
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			artifact := upload.Artifacts[vf.image]

			if _, err := imaging.Sniff(artifact.Data); err != nil {
				return fmt.Errorf("%w: %s: %v", measurement.ErrInvalidFileType, vf.image, err)
			}

			decoded, err := imaging.Decode(artifact.Data, s.maxPixels)
			switch {
			case errors.Is(err, imaging.ErrTooManyPixels):
				return fmt.Errorf("%w: %s: %v", measurement.ErrFileTooLarge, vf.image, err)
			case err != nil:
				return fmt.Errorf("%w: %s: %v", measurement.ErrUndecodableImage, vf.image, err)
			}

			view := entity.View{
				Viewpoint: vf.viewpoint,
				Raw:       artifact.Data,
				Format:    decoded.Format,
				Width:     decoded.Width,
				Height:    decoded.Height,
			}
			if vf.depth != "" {
				view.Depth = upload.Artifacts[vf.depth].Data
			}
			views[i] = view
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, s.processingError(ctx, err)
		}
		return nil, err
	}
	return views, nil
}

func (s *measurementService) estimate(ctx context.Context, views []entity.View) ([]entity.PixelMeasurement, error) {
	start := time.Now()

	if err := s.pool.Acquire(ctx, 1); err != nil {
		return nil, s.processingError(ctx, err)
	}
	defer s.pool.Release(1)

	pixels, err := s.estimator.Estimate(ctx, views)
	if err != nil {
		return nil, s.processingError(ctx, err)
	}

	log.WithRequestID(ctx).WithFields(log.Fields{
		"estimator":  s.estimator.Name(),
		"views":      len(views),
		"metrics":    len(pixels),
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Estimator finished")

	return pixels, nil
}

func (s *measurementService) processingError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: after %s", measurement.ErrProcessingTimeout, s.timeout)
	}
	return fmt.Errorf("%w: %s: %v", measurement.ErrProcessingFailed, s.estimator.Name(), err)
}

func (s *measurementService) assemble(ctx context.Context, pixels []entity.PixelMeasurement, ref entity.View) (measurement.MeasurementResult, error) {
	if len(pixels) == 0 {
		return nil, fmt.Errorf("%w: estimator returned no metrics", measurement.ErrProcessingFailed)
	}

	result := make(measurement.MeasurementResult, len(pixels))
	for _, m := range pixels {
		if err := s.validator.StructCtx(ctx, m); err != nil {
			return nil, fmt.Errorf("%w: invalid metric %q: %v", measurement.ErrProcessingFailed, m.Name, err)
		}
		if _, dup := result[m.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate metric %q", measurement.ErrProcessingFailed, m.Name)
		}

		metric, err := Normalize(m, ref.Width, ref.Height)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", measurement.ErrProcessingFailed, err)
		}
		result[m.Name] = metric
	}

	return result, nil
}
