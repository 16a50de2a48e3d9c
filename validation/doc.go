// Package validation validates configuration structs with
// go-playground/validator and reports failures as INVALID_CONFIG errors.
//
//	type StageDef struct {
//	    Name        string `yaml:"name" validate:"required"`
//	    Parallelism int    `yaml:"parallelism" validate:"gte=0"`
//	}
//	err := validation.Struct(def)
package validation
