package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/attitude_controller/internal/app"
	"github.com/relabs-tech/attitude_controller/internal/config"
)

func main() {
	configPath := flag.String("config", "./flight_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting attitude display (SSD1306, MQTT subscriber)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
