package config

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

func NewValidator() *validator.Validate {
	validate := validator.New()
	_ = validate.RegisterValidation("origin", validateOrigin)
	return validate
}

// validateOrigin accepts a serialized browser origin: scheme://host[:port]
// over http or https, or the opaque "null" origin sent from file:// pages.
func validateOrigin(fl validator.FieldLevel) bool {
	origin := fl.Field().String()
	if origin == "null" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return false
	}
	return u.Path == "" && !strings.Contains(u.Host, "*")
}
