package openaichat

import "errors"

// errEmptyChoices marks a 2xx response carrying no choices; treated like any
// other transport failure.
var errEmptyChoices = errors.New("no choices in response")
