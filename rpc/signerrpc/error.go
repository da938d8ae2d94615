package signerrpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Manta-Network/manta-signer/seedmgr"
	"github.com/Manta-Network/manta-signer/shielded"
	"github.com/labstack/echo/v4"
)

// Error types to simplify the reporting of specific categories of
// errors, and their HTTP status code.
type (
	// DeserializationError describes a request body that could not be
	// decoded.  It is reported as 400 Bad Request.
	DeserializationError struct {
		error
	}

	// InvalidParameterError describes a decoded request whose parameters
	// are unusable.  It is reported as 400 Bad Request.
	InvalidParameterError struct {
		error
	}

	// AuthorizationError describes a request the user did not authorize.
	// It is reported as 401 Unauthorized.
	AuthorizationError struct {
		error
	}
)

// Errors variables that are defined once here to avoid duplication below.
var (
	// ErrRejected is returned by an Authorizer when the user declines the
	// prompt instead of entering a password.
	ErrRejected = AuthorizationError{
		errors.New("Transaction rejected by user"),
	}

	ErrEmptyBody = DeserializationError{
		errors.New("request body is empty"),
	}
)

// statusError translates an error returned by a handler into the status code
// and message written back to the dApp.
func statusError(err error) (int, string) {
	var (
		herr    *echo.HTTPError
		deser   DeserializationError
		invalid InvalidParameterError
		auth    AuthorizationError
		mgrErr  seedmgr.ManagerError
	)
	switch {
	case errors.As(err, &herr):
		return herr.Code, fmt.Sprint(herr.Message)
	case errors.As(err, &auth):
		return http.StatusUnauthorized, auth.Error()
	case errors.As(err, &deser):
		return http.StatusBadRequest, deser.Error()
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Error()
	case errors.Is(err, shielded.ErrInvalidParams),
		errors.Is(err, shielded.ErrInvalidKeyPath),
		errors.Is(err, shielded.ErrInvalidAddress),
		errors.Is(err, shielded.ErrNotInShard),
		errors.Is(err, shielded.ErrShardFull),
		errors.Is(err, shielded.ErrUnknownCurrency):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, err.Error()
	case errors.As(err, &mgrErr):
		if mgrErr.ErrorCode == seedmgr.ErrWrongPassphrase {
			return http.StatusUnauthorized, mgrErr.Error()
		}
	}
	return http.StatusInternalServerError, err.Error()
}

// httpErrorHandler writes every handler error as a JSON string, the way the
// dApp expects a rejection.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg := statusError(err)
	if code >= http.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	} else {
		log.Debugf("%s %s: %v", c.Request().Method, c.Path(), err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, msg)
	}
	if err != nil {
		log.Warnf("Unable to write error response: %v", err)
	}
}
