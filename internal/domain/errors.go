package domain

import "errors"

// Error taxonomy shared by adapters and the pipeline. Adapters wrap the
// underlying cause with one of these so callers can classify via errors.Is.
var (
	ErrSourceUnavailable = errors.New("article source unavailable")
	ErrExtraction        = errors.New("content extraction failed")
	ErrAnalysisService   = errors.New("analysis service failed")
	ErrDelivery          = errors.New("notification delivery failed")
	ErrDuplicateRecord   = errors.New("article already recorded")
	ErrStoreFatal        = errors.New("dedup store failure")
	ErrInvalidConfig     = errors.New("invalid configuration")
)
