package pipeline

import (
	"errors"

	"github.com/jonathan/webfont-splitter/internal/encoder"
	"github.com/jonathan/webfont-splitter/internal/fallback"
	"github.com/jonathan/webfont-splitter/internal/fetch"
	"github.com/jonathan/webfont-splitter/internal/planner"
	"github.com/jonathan/webfont-splitter/internal/repertoire"
	"github.com/jonathan/webfont-splitter/internal/store"
	"github.com/jonathan/webfont-splitter/internal/subsetter"
	"github.com/jonathan/webfont-splitter/internal/types"
)

// diagnose turns a failure into a diagnostic, deriving stage and kind from
// the error's type
func diagnose(fontID, source, bucket string, err error) types.Diagnostic {
	d := types.Diagnostic{
		FontID:  fontID,
		Source:  source,
		Bucket:  bucket,
		Message: err.Error(),
	}

	var (
		subErr   *subsetter.SubsettingError
		encErr   *encoder.EncodingError
		storeErr *store.Error
		planErr  *planner.PlanningError
		repErr   *repertoire.Error
		fetchErr *fetch.Error
		fbErr    *fallback.Error
	)
	switch {
	case errors.As(err, &subErr):
		d.Stage, d.Kind = types.StageSubset, string(subErr.Kind)
	case errors.As(err, &encErr):
		d.Stage, d.Kind = types.StageEncode, string(encErr.Kind)
	case errors.As(err, &storeErr), errors.Is(err, store.ErrClosed):
		d.Stage, d.Kind = types.StageStore, "StoreError"
	case errors.As(err, &planErr):
		d.Stage, d.Kind = types.StagePlan, "PlanningError"
	case errors.As(err, &fbErr), errors.Is(err, fallback.ErrNoSources):
		d.Stage = types.StageFallback
	case errors.As(err, &repErr), errors.As(err, &fetchErr):
		d.Stage, d.Kind = types.StageRead, "ReadError"
	default:
		d.Stage = types.StageRead
	}
	return d
}
