package model

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Decode maps a raw store document onto a model struct using the bson tags,
// tolerating the loose numeric types different store adapters hand back.
func Decode(raw map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "bson",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "build decoder")
	}
	return errors.Wrap(dec.Decode(raw), "decode document")
}
