package cli

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fieldops/adminctl/internal/client/gateway"
)

// runServe запускает локальную административную консоль
func (c *Cli) runServe(ctx context.Context) error {
	upstream, err := url.Parse(c.cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", c.cfg.ServerURL, err)
	}

	seq := c.newSequencer(c.cfg.ProfileTimeout)

	g := gateway.New(gateway.Options{
		Client:      c.client,
		Sequencer:   seq,
		Session:     c.session,
		Credentials: c.creds,
		Limiter:     c.limiter,
		Notifier:    c.notifier,
		Upstream:    upstream,
		Logger:      c.logger,
	})

	c.io.Printf("Admin console: http://%s\n", c.cfg.ListenAddr)
	c.io.Println("Press Ctrl+C to stop.")

	return g.Serve(ctx, c.cfg.ListenAddr)
}
