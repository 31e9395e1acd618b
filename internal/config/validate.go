package config

import (
	"fmt"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/eugenenazirov/provstore-interop/internal/formats"
)

// Validate checks the fields a ProvStore converter needs.
func (c Config) Validate() error {
	known := knownFormats()
	err := validation.ValidateStruct(&c,
		validation.Field(&c.URL,
			validation.Required,
			validation.By(validateStoreURL),
		),
		validation.Field(&c.Authorization, validation.Required),
		validation.Field(&c.InputFormats,
			validation.Required,
			validation.Each(validation.In(known...)),
		),
		validation.Field(&c.OutputFormats,
			validation.Required,
			validation.Each(validation.In(known...)),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func knownFormats() []interface{} {
	all := formats.All()
	out := make([]interface{}, 0, len(all))
	for _, f := range all {
		out = append(out, f)
	}
	return out
}

func validateStoreURL(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}
	if parsed.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}
	return nil
}
