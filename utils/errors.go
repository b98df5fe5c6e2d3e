package utils

// API error codes returned in JSON bodies alongside HTTP status codes.
const (
	ErrorOk              = 0
	ErrorTokenAuthFail   = 1001
	ErrorTwoFactorNeeded = 1002
	ErrorInvalidCode     = 1003
	ErrorValidation      = 2001
	ErrorNotFound        = 3001
	ErrorForbidden       = 3002
	ErrorConflict        = 3003
	ErrorInternal        = 5001
)
