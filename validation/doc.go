// Package validation provides input validation for wirekit configuration and
// API requests.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Both return
// *errors.AppError values with the offending fields listed under the
// "fields" detail.
//
// # Struct Tag Validation
//
//	type Request struct {
//	    Type string `json:"type" validate:"required"`
//	}
//	err := validation.Validate(req)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("root", cfg.Root).Min("workers", cfg.Workers, 0)
//	if appErr := v.Validate(); appErr != nil { ... }
package validation
