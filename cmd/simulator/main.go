package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/attitude_controller/internal/app"
	"github.com/relabs-tech/attitude_controller/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (defaults when empty)")
	quiet := flag.Bool("quiet", false, "do not log duty changes")
	flag.Parse()

	log.Println("starting attitude controller simulator (synthetic IMU, MQTT commands)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunSimulator(*quiet); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
