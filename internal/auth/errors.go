package auth

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeConfiguration      = "auth_configuration_missing"
	TextCodeListenerBind       = "auth_listener_bind_failed"
	TextCodeCSRF               = "auth_state_mismatch"
	TextCodeProviderDenied     = "auth_provider_denied"
	TextCodeTokenExchange      = "auth_token_exchange_failed"
	TextCodeProfileFetch       = "auth_profile_fetch_failed"
	TextCodeNetworkTimeout     = "auth_network_timeout"
	TextCodeDuplicateAccount   = "auth_duplicate_account"
	TextCodeInvalidCredentials = "auth_invalid_credentials"
	TextCodeValidation         = "auth_invalid_input"
	TextCodeCancelled          = "auth_cancelled"
)

func newError(
	source error,
	category goerrors.Category,
	code int,
	textCode string,
	message string,
	metadata map[string]any,
) *goerrors.Error {
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, category, message)
	} else {
		err = goerrors.New(message, category)
	}
	err = err.WithCode(code).WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// ConfigurationError reports missing OAuth client settings. The user
// must be sent to the settings screen.
func ConfigurationError(missing ...string) error {
	return newError(nil, goerrors.CategoryValidation, http.StatusBadRequest, TextCodeConfiguration,
		"oauth is not configured: client id and client secret are required",
		map[string]any{"missing": missing})
}

// ListenerBindError reports that the callback address could not be bound.
func ListenerBindError(addr string, err error) error {
	return newError(err, goerrors.CategoryOperation, http.StatusConflict, TextCodeListenerBind,
		fmt.Sprintf("could not listen for the login callback on %s; close other login windows and retry", addr),
		map[string]any{"addr": addr})
}

// CsrfError reports a callback whose state does not match the session.
func CsrfError() error {
	return newError(nil, goerrors.CategoryAuth, http.StatusUnauthorized, TextCodeCSRF,
		"invalid state parameter - possible CSRF attack", nil)
}

// ProviderDeniedError carries the provider's reason verbatim, followed by
// its human-readable description when one was sent.
func ProviderDeniedError(reason, description string) error {
	message := "oauth error: " + reason
	metadata := map[string]any{"reason": reason}
	if description != "" {
		message += ": " + description
		metadata["description"] = description
	}
	return newError(nil, goerrors.CategoryAuth, http.StatusForbidden, TextCodeProviderDenied,
		message, metadata)
}

func TokenExchangeError(provider, message string, err error) error {
	return newError(err, goerrors.CategoryExternal, http.StatusBadGateway, TextCodeTokenExchange,
		"token exchange failed: "+message, map[string]any{"provider": provider})
}

func ProfileFetchError(provider, message string, err error) error {
	return newError(err, goerrors.CategoryExternal, http.StatusBadGateway, TextCodeProfileFetch,
		"failed to get user info: "+message, map[string]any{"provider": provider})
}

// NetworkTimeoutError reports a bounded wait that ran out. Retryable.
func NetworkTimeoutError(operation string, err error) error {
	return newError(err, goerrors.CategoryExternal, http.StatusGatewayTimeout, TextCodeNetworkTimeout,
		operation+" timed out; please try again", map[string]any{"operation": operation})
}

func DuplicateAccountError(accountID string) error {
	return newError(nil, goerrors.CategoryConflict, http.StatusConflict, TextCodeDuplicateAccount,
		"username already exists", map[string]any{"account_id": accountID})
}

// InvalidCredentialsError never says whether the account exists.
func InvalidCredentialsError() error {
	return newError(nil, goerrors.CategoryAuth, http.StatusUnauthorized, TextCodeInvalidCredentials,
		"invalid username or password", nil)
}

func ValidationError(err error) error {
	return newError(err, goerrors.CategoryValidation, http.StatusBadRequest, TextCodeValidation,
		err.Error(), nil)
}

// CancelledError reports a login abandoned by the user.
func CancelledError() error {
	return newError(nil, goerrors.CategoryOperation, http.StatusRequestTimeout, TextCodeCancelled,
		"login cancelled", nil)
}

// TextCode returns the taxonomy code of err, or "" when err is not one of ours.
func TextCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}

// IsCode reports whether err carries the given text code.
func IsCode(err error, textCode string) bool {
	return err != nil && TextCode(err) == textCode
}

// Message is the single human-readable line shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Message != "" {
		return rich.Message
	}
	return err.Error()
}
