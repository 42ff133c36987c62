package normalize

import "errors"

// Sentinel kinds for normalization errors.
var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnsupportedEvent = errors.New("unsupported event")
)
