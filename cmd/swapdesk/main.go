package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/avelasquez/swapdesk/internal/app"
)

func main() {
	// Escrow address and key may live in a local .env; absence is fine.
	_ = godotenv.Load()

	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
