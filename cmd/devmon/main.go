package main

import (
	"flag"

	"devmon/config"
	"devmon/internal/logs"
	"devmon/server"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (yaml/toml/json)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logs.Logger.Fatalf("config: %v", err)
	}

	var app server.App
	if err := app.Initialize(cfg, nil); err != nil {
		logs.Logger.Fatalf("init: %v", err)
	}
	if err := app.Run(); err != nil {
		logs.Logger.Fatalf("run: %v", err)
	}
}
