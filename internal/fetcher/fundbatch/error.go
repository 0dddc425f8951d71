package fundbatch

import "errors"

// Errors
var (
	errFundNotInBatch = errors.New("fund code not present in batch")
)
