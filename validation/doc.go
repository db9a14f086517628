// Package validation validates configuration and request input.
//
// Struct tag validation uses go-playground/validator. Field names in errors
// come from mapstructure or json tags, so messages match what the user wrote:
//
//	type ViewConfig struct {
//	    Table    string `mapstructure:"table" validate:"required,identifier"`
//	    PageSize int    `mapstructure:"page_size" validate:"gte=1,lte=1000"`
//	}
//	err := validation.Validate(cfg)
//
// Programmatic validation collects errors from chained checks:
//
//	v := validation.New()
//	v.Required("resource", name).Identifier("resource", name)
//	if err := v.Validate(); err != nil { ... }
package validation
