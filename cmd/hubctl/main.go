package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jrsteele09/bastion-hub/internal/backend"
	"github.com/jrsteele09/bastion-hub/internal/cli"
	"github.com/jrsteele09/bastion-hub/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	c, err := config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.ExitCommandError
	}

	ctx := context.Background()
	store, err := backend.Open(ctx, c)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.ExitCommandError
	}
	defer store.Close()

	cmd := cli.NewRootCommand(&cli.Env{Config: c, KV: store.Sessions, Stdin: os.Stdin})
	if err := cmd.ExecuteContext(ctx); err != nil {
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
