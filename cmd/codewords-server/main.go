// Package main is the entry point for the Codewords game server. It only
// handles flag parsing and dependency injection; no game logic lives here.
package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	releaseVersion = "0.2.0"
)

func main() {
	log.SetFlags(0)

	// A .env file is optional; real deployments set the environment.
	_ = godotenv.Load()

	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}
