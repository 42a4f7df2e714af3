package main

import (
	"log"

	_ "time/tzdata"

	"event-enricher/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
