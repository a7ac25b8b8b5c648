package service

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/scheduling"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

var rejectionStatus = map[scheduling.Kind]int{
	scheduling.KindValidation:      http.StatusBadRequest,
	scheduling.KindNotFound:        http.StatusNotFound,
	scheduling.KindConflict:        http.StatusConflict,
	scheduling.KindStateTransition: http.StatusBadRequest,
	scheduling.KindOwnership:       http.StatusForbidden,
}

// rejectionError converts a scheduling rejection into an API error whose code
// is the rejection reason. ok is false when err carries no rejection.
func rejectionError(err error) (*appErrors.Error, bool) {
	rejection, ok := scheduling.AsRejection(err)
	if !ok {
		return nil, false
	}
	status, known := rejectionStatus[rejection.Kind]
	if !known {
		status = http.StatusBadRequest
	}
	appErr := appErrors.Wrap(err, string(rejection.Reason), status, rejection.Message)

	var conflict *scheduling.ScheduleConflictError
	if errors.As(err, &conflict) {
		appErr = appErr.WithDetails(map[string]string{
			"conflicting_entry_id": conflict.Existing.ID,
			"weekday":              string(conflict.Existing.Interval.Weekday),
			"start_time":           conflict.Existing.Interval.Start.String(),
			"end_time":             conflict.Existing.Interval.End.String(),
		})
	}
	return appErr, true
}

// guardedWriteError maps the failure of a repository write that ran a
// business decision inside its transaction.
func guardedWriteError(metrics *MetricsService, op string, err error, notFound, internal string) error {
	if appErr, ok := rejectionError(err); ok {
		metrics.RecordRejection(op, appErr.Code)
		return appErr
	}
	switch {
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, repository.ErrForeignKey):
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, "record already exists")
	case errors.Is(err, repository.ErrTxConflict):
		metrics.RecordTxConflict(op)
		return appErrors.Clone(appErrors.ErrConflict, "data changed concurrently, please retry")
	}
	return internalError(err, internal)
}

func validationError(err error, message string) *appErrors.Error {
	appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fe.Tag()
		}
		appErr = appErr.WithDetails(fields)
	}
	return appErr
}

func internalError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func paginate(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
