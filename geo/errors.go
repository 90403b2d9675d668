package geo

import "errors"

// ErrBadWidth is returned when a bbox property is present but not a
// 4-double vector — the geo-package half of the core's EncoderMismatch
// error kind (see pkg/errors).
var ErrBadWidth = errors.New("bbox property has unrecognised width")
