package main

import (
	"context"
	"flag"
	"os"

	"github.com/yusari/worktimer/internal/cli"
	"github.com/yusari/worktimer/internal/config"
)

func main() {
	cfg := config.DefaultConfig()
	socketPath := flag.String("socket", cfg.SocketPath, "UDS path for worktimerd")
	flag.Parse()

	r := cli.NewRunner(*socketPath, os.Stdout, os.Stderr)
	os.Exit(r.Run(context.Background(), flag.Args()))
}
