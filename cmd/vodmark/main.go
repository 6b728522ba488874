package main

import (
	"log"

	"github.com/MrSnakeDoc/vodmark/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ vodmark failed to start: %v", err)
	}
}
