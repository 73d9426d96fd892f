package cli

import (
	"context"
	"fmt"
	"time"
)

// runStatus показывает локальное состояние сессии без сетевых вызовов
func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Session Status ===")
	c.io.Println()

	opCtx, cancel := context.WithTimeout(ctx, c.cfg.StorageTimeout)
	state, err := c.state.GetState(opCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to read session state: %w", err)
	}

	if state.Authenticated {
		c.io.Println("Status: Authenticated")
		c.io.Printf("User:   %s (%s)\n", state.Profile.DisplayName(), state.Profile.Role)
	} else {
		c.io.Println("Status: Not authenticated")
	}
	c.io.Printf("Device: %s\n", state.DeviceID)

	if state.AccessToken != "" {
		if expiry, ok := c.session.TokenExpiry(state.AccessToken); ok {
			c.io.Printf("Token expires: %s\n", expiry.Format(time.RFC3339))
			if remaining := time.Until(expiry); remaining > 0 {
				c.io.Printf("Time remaining: %s\n", remaining.Round(time.Second))
			} else {
				c.io.Println("Token has expired. It will be refreshed on next use.")
			}
		}
	} else {
		c.io.Println("No durable tokens on this device.")
	}

	c.io.Println()
	if c.creds.Exists(ctx) {
		c.io.Println("Saved credentials: present (automatic sign-in enabled)")
	} else {
		c.io.Println("Saved credentials: none")
	}

	return nil
}
