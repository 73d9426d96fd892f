package cli

import (
	"context"
	"flag"
	"fmt"
)

// Run выполняет команду с ее аргументами
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		remember := fs.Bool("remember", false, "save credentials for automatic sign-in")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.runLogin(ctx, *remember)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "whoami":
		return c.runWhoami(ctx)
	case "serve":
		return c.runServe(ctx)
	default:
		PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}
