package main

import (
	"os"

	"github.com/smegmarip/photo-organizer/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
