package main

import (
	"log"

	"github.com/domicile785-droid/Cycle-World/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("storefront failed: %v", err)
	}
}
