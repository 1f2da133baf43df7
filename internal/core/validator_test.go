package core

import (
	"errors"
	"testing"

	"tidewatch/internal/types"
)

func TestValidateStruct(t *testing.T) {
	v := NewValidator(testLogger())

	type forecastRequest struct {
		HorizonHours int `json:"horizon_hours" validate:"required,min=1,max=168"`
	}

	t.Run("valid", func(t *testing.T) {
		if err := v.ValidateStruct(forecastRequest{HorizonHours: 24}); err != nil {
			t.Errorf("ValidateStruct() = %v, want nil", err)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		err := v.ValidateStruct(forecastRequest{HorizonHours: 200})
		if err == nil {
			t.Fatal("ValidateStruct() accepted horizon 200")
		}
		var appErr *types.AppError
		if !errors.As(err, &appErr) {
			t.Fatalf("error type = %T, want *types.AppError", err)
		}
		if appErr.Code != types.ErrCodeValidationInvalidParameter {
			t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeValidationInvalidParameter)
		}
		if appErr.Details["field"] != "HorizonHours" {
			t.Errorf("details.field = %v, want HorizonHours", appErr.Details["field"])
		}
		if appErr.Details["constraint"] != "max" {
			t.Errorf("details.constraint = %v, want max", appErr.Details["constraint"])
		}
	})

	t.Run("missing required", func(t *testing.T) {
		err := v.ValidateStruct(forecastRequest{})
		if err == nil {
			t.Fatal("ValidateStruct() accepted zero horizon")
		}
	})

	t.Run("non-struct input", func(t *testing.T) {
		err := v.ValidateStruct(42)
		if err == nil {
			t.Fatal("ValidateStruct() accepted a non-struct value")
		}
		var appErr *types.AppError
		if !errors.As(err, &appErr) {
			t.Fatalf("error type = %T, want *types.AppError", err)
		}
		if appErr.Code != types.ErrCodeInternalUnexpected {
			t.Errorf("code = %q, want internal", appErr.Code)
		}
	})
}
