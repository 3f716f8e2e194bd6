package main

import (
	"flag"
	"log"

	"Kaupa/internal/app_routers"
	"Kaupa/internal/configuration"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.json", "path to configuration file")
	flag.Parse()

	cfg, err := configuration.Load(*configPath)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	container, err := configuration.BuildContainer(cfg)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}
	defer container.Close()

	if err := app_routers.Run(container); err != nil {
		container.Logger.Fatal("server failed", zap.Error(err))
	}
}
