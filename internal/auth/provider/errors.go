package provider

import (
	"context"
	"errors"
	"net"
	"strings"

	"collab-auth/internal/auth"

	"golang.org/x/oauth2"
)

// ExchangeError maps a token exchange failure onto the auth taxonomy.
func ExchangeError(providerName string, err error) error {
	if isTimeout(err) {
		return auth.NetworkTimeoutError("token exchange", err)
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		msg := re.ErrorDescription
		if msg == "" {
			msg = re.ErrorCode
		}
		if msg == "" {
			msg = strings.TrimSpace(string(re.Body))
		}
		return auth.TokenExchangeError(providerName, msg, err)
	}
	return auth.TokenExchangeError(providerName, err.Error(), err)
}

// ProfileError maps a failed profile request onto the auth taxonomy.
func ProfileError(providerName string, err error) error {
	if isTimeout(err) {
		return auth.NetworkTimeoutError("profile fetch", err)
	}
	return auth.ProfileFetchError(providerName, err.Error(), err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
