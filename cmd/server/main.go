package main

import (
	"flag"
	"log"

	approuters "Livestream/internal/app_routers"
	"Livestream/internal/configuration"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON or YAML config file (defaults to $LIVESTREAM_CONFIG)")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load(".env")

	config, err := configuration.LoadConfig(configuration.ResolveConfigPath(*configPath))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	container, err := configuration.BuildContainer(config)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	approuters.StartServer(container)
}
