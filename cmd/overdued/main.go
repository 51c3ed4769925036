package main

import (
	"log"

	overdued "peerlend/services/overdued"
)

func main() {
	if err := overdued.Main(); err != nil {
		log.Fatalf("overdued: %v", err)
	}
}
