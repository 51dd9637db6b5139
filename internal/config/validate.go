package config

import (
	"github.com/go-playground/validator/v10"

	"github.com/signalsfoundry/mesh-relay-simulator/core"
	"github.com/signalsfoundry/mesh-relay-simulator/model"
)

// validate is shared by every Config. Custom tags defer to the core parsers
// so that names accepted here are exactly the names core understands.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("variant", validateVariant)
	_ = validate.RegisterValidation("rankkey", validateRankKey)
	_ = validate.RegisterValidation("mobility", validateMobility)
	_ = validate.RegisterValidation("layout", validateLayout)
}

func validateVariant(fl validator.FieldLevel) bool {
	_, err := core.ParseVariant(fl.Field().String())
	return err == nil
}

func validateRankKey(fl validator.FieldLevel) bool {
	_, err := core.ParseRankKey(fl.Field().String())
	return err == nil
}

func validateMobility(fl validator.FieldLevel) bool {
	_, err := core.NewMobilityModel(fl.Field().String())
	return err == nil
}

func validateLayout(fl validator.FieldLevel) bool {
	switch model.Layout(fl.Field().String()) {
	case model.LayoutUniform, model.LayoutGroup, model.LayoutPoisson:
		return true
	default:
		return false
	}
}
