package apiclient

import (
	"errors"

	"github.com/angeloszaimis/campus-gateway/pkg/tokenstore"
)

// SetSession stores the credentials returned by a login. Empty values are
// skipped so a refresh that only returns an access token keeps the rest.
func (c *Client) SetSession(accessToken, refreshToken, user string) error {
	var errs []error
	for key, value := range map[string]string{
		tokenstore.AccessTokenKey:  accessToken,
		tokenstore.RefreshTokenKey: refreshToken,
		tokenstore.UserKey:         user,
	} {
		if value == "" {
			continue
		}
		if err := c.tokens.Set(key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClearSession removes every stored credential. Subsequent requests carry no
// Authorization header.
func (c *Client) ClearSession() error {
	return errors.Join(
		c.tokens.Remove(tokenstore.AccessTokenKey),
		c.tokens.Remove(tokenstore.RefreshTokenKey),
		c.tokens.Remove(tokenstore.UserKey),
	)
}

// Authenticated reports whether an access token is stored.
func (c *Client) Authenticated() bool {
	token, ok := c.tokens.Get(tokenstore.AccessTokenKey)
	return ok && token != ""
}
