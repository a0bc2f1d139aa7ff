package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/spigell/jobfit/cmd"
)

func main() {
	// A .env file is optional.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
