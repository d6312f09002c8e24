package rse

import "errors"

// ErrEmptyInput indicates that none of the supplied query result lists
// contained any results. This is not treated as an error condition upward;
// ExtractSegments returns an empty segment list instead of propagating it.
var ErrEmptyInput = errors.New("rse: no query returned any results")

// ErrInvalidParameter indicates a parameter was outside its declared domain.
var ErrInvalidParameter = errors.New("rse: invalid parameter")

// ErrInconsistentResult indicates a RankedResult had a negative chunk index.
var ErrInconsistentResult = errors.New("rse: inconsistent result")
