package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"tidewatch/internal/types"
)

// Validator wraps go-playground/validator for request DTO validation,
// translating tag failures into the service's AppError shape so handlers can
// pass them straight to core.Error.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct validates a request DTO against its struct tags. It returns
// nil on success, or a *types.AppError with code
// "validation_invalid_parameter" carrying the first violated field and tag.
func (v *Validator) ValidateStruct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidParameter,
			"request validation failed",
			err,
			map[string]any{
				"field":      fe.Field(),
				"constraint": fe.Tag(),
				"param":      fe.Param(),
			},
		)
	}

	// InvalidValidationError (non-struct input) is a programming error;
	// surface it as internal rather than blaming the caller.
	v.logger.Error("validator invoked with non-struct value", "error", err)
	return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
}
