package evidence

import "errors"

// ErrNotFound is returned by Store lookups for a missing id. It never
// crosses the retriever's public contract — retrieval failures are
// reported via RetrievalResult.FallbackReason instead.
var ErrNotFound = errors.New("not found")
