package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	clientapi "github.com/fieldops/adminctl/internal/client/api"
	"github.com/fieldops/adminctl/internal/validation"
	"github.com/fieldops/adminctl/pkg/api"
)

func (c *Cli) runLogin(ctx context.Context, remember bool) error {
	c.io.Println("=== FieldOps Admin Login ===")
	c.io.Println()

	login, err := c.io.ReadInput("Login: ")
	if err != nil {
		return fmt.Errorf("failed to read login: %w", err)
	}
	if err := validation.ValidateLogin(login); err != nil {
		return err
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return err
	}

	if err := c.limiter.Check(ctx, login); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("Authenticating...")

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.ProfileTimeout)
	resp, err := c.client.Login(callCtx, api.LoginRequest{Login: login, Password: password})
	cancel()
	if err != nil {
		if errors.Is(err, clientapi.ErrUnauthorized) {
			c.limiter.RecordFailure(ctx, login)
			return fmt.Errorf("invalid login or password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	c.limiter.Reset(ctx, login)
	c.session.SetSession(ctx, resp.User, resp.AccessToken, resp.RefreshToken, remember)
	if remember {
		c.creds.Save(ctx, login, password)
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.io.Printf("Signed in as: %s\n", resp.User.DisplayName())
	if expiry, ok := c.session.TokenExpiry(resp.AccessToken); ok {
		c.io.Printf("Access token expires: %s\n", expiry.Format(time.RFC3339))
	}
	if remember {
		c.io.Println("Credentials saved for automatic sign-in on this device.")
	}

	return nil
}
