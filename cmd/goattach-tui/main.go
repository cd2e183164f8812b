package main

import (
	"flag"
	"log"

	"goattach/internal/app"
	"goattach/internal/tui"
)

func main() {
	socket := flag.String("socket", "", "Status socket of the running attacher")
	flag.Parse()

	controller := app.New(app.Options{Socket: *socket})
	if err := tui.Run(controller); err != nil {
		log.Fatalf("tui exited with error: %v", err)
	}
}
