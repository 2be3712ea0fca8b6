package session

import "errors"

// ErrExtractionParse marks malformed structured output from the generation
// model. The transcript's merge is aborted; world state stays untouched.
var ErrExtractionParse = errors.New("extraction output malformed")
