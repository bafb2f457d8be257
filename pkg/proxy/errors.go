package proxy

import (
	"errors"

	"toutjavascript/infollama/pkg/proxy/types"
	"toutjavascript/infollama/pkg/security/auth"
	"toutjavascript/infollama/pkg/upstream"
)

// HandleError maps an error to the JSON body and status the client sees.
// Upstream failures never leak their cause.
//
// Example usage:
//
//	if err != nil {
//	    WriteErrorResponse(w, HandleError(err))
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}

	if errors.Is(err, auth.ErrUnauthorized) {
		return types.NewForbiddenError()
	}

	var unavailable *upstream.UnavailableError
	if errors.As(err, &unavailable) {
		return types.NewUpstreamUnavailableError()
	}

	var tooLarge *upstream.BodyTooLargeError
	if errors.As(err, &tooLarge) {
		return types.NewBadGatewayError()
	}

	return types.NewServerError()
}
