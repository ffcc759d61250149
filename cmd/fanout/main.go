// Command fanout spawns two tasks one after the other, then two tasks at
// once, and prints a sentinel line after each group has finished.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NetPo4ki/go-fanout/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := &cli.App{Stdout: os.Stdout, Stderr: os.Stderr}
	code := app.Execute(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}
