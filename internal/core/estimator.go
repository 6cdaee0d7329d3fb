package core

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autocloud.com/car-insurance-estimator/internal/apperr"
	"autocloud.com/car-insurance-estimator/internal/metrics"
	"autocloud.com/car-insurance-estimator/internal/reference"
)

type estimateIDKey struct{}

// WithEstimateID attaches a caller-chosen estimate id used in logs.
func WithEstimateID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, estimateIDKey{}, id)
}

func estimateID(ctx context.Context) string {
	if id, ok := ctx.Value(estimateIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Estimator runs the whole pipeline: reference fetch, prompt assembly and
// report streaming, strictly in that order.
type Estimator struct {
	refs      reference.Provider
	generator *Generator
	template  string
	logger    *zap.SugaredLogger
}

// NewEstimator wires the pipeline. refs may be nil to disable reference enrichment.
func NewEstimator(refs reference.Provider, generator *Generator, template string, logger *zap.SugaredLogger) *Estimator {
	return &Estimator{
		refs:      refs,
		generator: generator,
		template:  template,
		logger:    logger,
	}
}

// Estimate reads the optional image at imagePath and streams the report for
// the description. An unreadable image fails before any network call.
func (e *Estimator) Estimate(ctx context.Context, description, imagePath string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var img *Image
		if imagePath != "" {
			var err error
			img, err = LoadImage(imagePath)
			if err != nil {
				metrics.EstimatesTotal.WithLabelValues(apperr.KindOf(err).String()).Inc()
				e.logger.Warnf("Rejected image %s: %v", imagePath, err)
				yield("", err)
				return
			}
		}
		for report, err := range e.EstimateRequest(ctx, DamageReportRequest{Description: description, Image: img}) {
			if !yield(report, err) {
				return
			}
		}
	}
}

// EstimateRequest streams the report for an already loaded request.
func (e *Estimator) EstimateRequest(ctx context.Context, req DamageReportRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		id := estimateID(ctx)
		log := e.logger.With("estimate_id", id)
		start := time.Now()
		outcome := "ok"
		snapshots := 0
		defer func() {
			metrics.EstimatesTotal.WithLabelValues(outcome).Inc()
			metrics.EstimateDuration.Observe(time.Since(start).Seconds())
			log.Infow("Estimate finished", "outcome", outcome, "snapshots", snapshots, "elapsed", time.Since(start))
		}()

		fail := func(err error) {
			outcome = apperr.KindOf(err).String()
			log.Errorf("Estimate failed: %v", err)
			yield("", err)
		}

		block, err := reference.FetchBlock(ctx, e.refs)
		if err != nil {
			fail(err)
			return
		}

		prompt, err := Assemble(e.template, block, req)
		if err != nil {
			fail(err)
			return
		}
		log.Debugw("Prompt assembled", "text_bytes", len(prompt.Text()), "image", prompt.HasImage())

		for report, err := range e.generator.Generate(ctx, prompt) {
			if err != nil {
				fail(err)
				return
			}
			snapshots++
			if !yield(report, nil) {
				outcome = "cancelled"
				return
			}
		}
	}
}
