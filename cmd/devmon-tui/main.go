package main

import (
	"flag"
	"fmt"
	"os"

	"devmon/config"
	"devmon/internal/client"
	"devmon/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (yaml/toml/json)")
	apiURL := flag.String("api", "", "service base URL (overrides client.api_url)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	base := cfg.Client.APIURL
	if *apiURL != "" {
		base = *apiURL
	}

	c := client.New(base, cfg.Client.Timeout)
	if _, err := tea.NewProgram(tui.New(c), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
		os.Exit(1)
	}
}
