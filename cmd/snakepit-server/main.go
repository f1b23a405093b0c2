package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/najoast/snakepit/app"
)

func main() {
	flags, err := app.ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[SNAKEPIT] ")

	if err := app.Run(context.Background(), flags); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
