package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/mmynk/ducats/internal/auth"
)

type issueTokenCmd struct {
	env   *Env
	owner string
}

func (*issueTokenCmd) Name() string     { return "issue-token" }
func (*issueTokenCmd) Synopsis() string { return "print a bearer token for the RPC server" }
func (*issueTokenCmd) Usage() string {
	return `issue-token -owner <name>

  Signs a token with JWT_SECRET that is valid for TOKEN_TTL. Clients send it
  as "Authorization: Bearer <token>".
`
}

func (c *issueTokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "Name recorded in the token (required)")
}

func (c *issueTokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.owner == "" {
		return c.env.usagef("-owner is required")
	}
	cfg := c.env.Config
	if !cfg.AuthEnabled() {
		return c.env.failf("JWT_SECRET is not set")
	}

	token, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL).Generate(c.owner)
	if err != nil {
		return c.env.failf("%v", err)
	}
	fmt.Fprintln(c.env.Stdout, token)
	return subcommands.ExitSuccess
}
