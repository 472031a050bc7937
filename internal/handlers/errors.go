package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"sales-explorer/internal/errors"
	"sales-explorer/internal/loader"
	"sales-explorer/internal/pipeline"
	"sales-explorer/internal/services"
)

// toAppError maps domain failures onto the API error codes. The message of
// the result is always safe to show to the user.
func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var loadErr *loader.Error
	if stderrors.As(err, &loadErr) {
		var e *errors.AppError
		switch loadErr.Kind {
		case loader.KindUnsupportedFormat:
			e = errors.Wrap(err, errors.CodeUnsupportedFormat, loadErr.Message)
		case loader.KindMissingColumns:
			e = errors.Wrap(err, errors.CodeMissingColumns, loadErr.Message)
			e.Details = strings.Join(loadErr.Missing, ", ")
		default:
			e = errors.Wrap(err, errors.CodeMalformedFile, loadErr.Message)
		}
		return e
	}

	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &tooLarge):
		return errors.PayloadTooLarge(tooLarge.Limit)
	case stderrors.Is(err, pipeline.ErrInvalidRange):
		return errors.InvalidRange(err)
	case stderrors.Is(err, services.ErrNoDataset):
		return errors.NoDataset()
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.CodeServiceUnavail, "The request took too long, try a narrower selection")
	}
	return errors.InternalWrap(err, "An unexpected error occurred")
}
