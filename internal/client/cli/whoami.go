package cli

import (
	"context"
	"fmt"

	"github.com/fieldops/adminctl/internal/client/bootstrap"
)

// runWhoami прогоняет полную цепочку восстановления сессии
// и печатает профиль текущего пользователя
func (c *Cli) runWhoami(ctx context.Context) error {
	seq := c.newSequencer(c.cfg.FastProfileTimeout)

	res := seq.Run(ctx)
	if res.Status != bootstrap.StatusAuthenticated {
		return fmt.Errorf("not authenticated, run 'adminctl login' first")
	}

	profile := res.Profile
	c.io.Printf("%s\n", profile.DisplayName())
	c.io.Printf("Login: %s\n", profile.Login)
	c.io.Printf("Role:  %s\n", profile.Role)
	c.io.Printf("ID:    %s\n", profile.ID)

	return nil
}
