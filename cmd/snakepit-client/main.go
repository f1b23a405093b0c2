package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/najoast/snakepit/client"
)

func main() {
	addr, cfg, err := client.ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(addr)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer c.Close()

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = c.WaitForHealth(healthCtx)
	cancel()
	if err != nil {
		log.Fatalf("server at %s is not ready: %v", addr, err)
	}

	if err := c.Play(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("play: %v", err)
	}
}
