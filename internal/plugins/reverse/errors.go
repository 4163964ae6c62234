package reverse

import "github.com/danfengzi/obs-lv2/internal/errors"

const componentReverse = "plugins.reverse"

// ErrPayloadTooLarge is returned by Work for requests longer than MaxPayload.
var ErrPayloadTooLarge = errors.New(errors.NewStd("reverse: payload too large")).
	Component(componentReverse).
	Category(errors.CategoryValidation).
	Build()
