package main

import (
	"flag"
	"log"
	"net/http"
)

func main() {
	settingsPath := flag.String("settings", "", "path to a YAML settings file (optional)")
	flag.Parse()

	settings := DefaultServerSettings()
	if *settingsPath != "" {
		loaded, err := LoadServerSettings(*settingsPath)
		if err != nil {
			log.Fatalf("load settings: %v", err)
		}
		settings = loaded
	}

	server := NewServer(settings)
	log.Printf("aslan-serve listening on %s", settings.Addr)
	log.Fatal(http.ListenAndServe(settings.Addr, server))
}
