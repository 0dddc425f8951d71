package chartapi

import "errors"

// Errors
var (
	errNoResult = errors.New("chart result not found")
	errNoPrice  = errors.New("regularMarketPrice not found")
)
