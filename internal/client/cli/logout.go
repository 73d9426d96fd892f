package cli

import (
	"context"
	"time"
)

func (c *Cli) runLogout(ctx context.Context) error {
	c.io.Println("=== Logout ===")

	// Серверная сессия закрывается best effort: локальное состояние
	// очищается в любом случае
	callCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := c.client.Logout(callCtx); err != nil {
		c.logger.Debug("server logout failed", "error", err)
		c.io.Println("Warning: server logout failed, clearing local session anyway.")
	}
	cancel()

	c.session.Clear(ctx)
	c.creds.Clear(ctx)

	c.io.Println("✓ Local session cleared.")
	return nil
}
