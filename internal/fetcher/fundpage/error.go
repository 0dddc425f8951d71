package fundpage

import "errors"

// Errors
var (
	errPriceNotFound = errors.New("price not found in page")
	errChallengePage = errors.New("challenge page detected")
)
