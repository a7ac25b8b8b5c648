package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/academy-api/internal/scheduling"
)

// NewValidator returns a validator with the academy's custom tags:
// hhmm for 24h wall-clock times and weekday for MONDAY..SUNDAY.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := scheduling.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := scheduling.ParseWeekday(fl.Field().String())
		return err == nil
	})
	return v
}
