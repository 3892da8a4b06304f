package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/agis/meetme/internal/app"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A missing .env is fine; MEETME_* can come from the real environment.
	_ = godotenv.Load()
	app.SetBuildInfo(version, commit, date)
	os.Exit(app.Execute())
}
