package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/meridianhq/meridian-go/internal/token"
)

// credentialGrant is the backend's token response shape, shared by the
// login and refresh endpoints.
type credentialGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges email and password for a credential pair and installs
// it. The request bypasses auth injection and the offline queue: logging
// in while unreachable fails fast rather than parking credentials.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("api: encoding login request: %w", err)
	}

	resp, err := c.Do(ctx, Descriptor{
		Method:   http.MethodPost,
		Path:     c.loginPath,
		Body:     body,
		SkipAuth: true,
		NoQueue:  true,
	})
	if err != nil {
		return err
	}

	var grant credentialGrant
	if err := json.Unmarshal(resp.Body, &grant); err != nil {
		return fmt.Errorf("api: decoding login response: %w", err)
	}

	return c.tokens.SetCredentials(ctx, token.Credentials{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
	})
}

// Logout aborts every in-flight call and clears the credential pair from
// memory and durable storage.
func (c *Client) Logout(ctx context.Context) error {
	c.cancels.CancelAll()

	return c.tokens.ClearCredentials(ctx)
}
