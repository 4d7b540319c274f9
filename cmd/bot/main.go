package main

import (
	"fmt"
	"log"
	"os"

	"github.com/freshmanacadamy/gebeyabot/app"
	"github.com/freshmanacadamy/gebeyabot/core/buildinfo"
	corecmd "github.com/freshmanacadamy/gebeyabot/core/cmd"
	"github.com/freshmanacadamy/gebeyabot/core/logger"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("gebeyabot %s (%s, %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return
	}

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(carrier.(*app.Config))
		},
	})
	if err != nil {
		log.Fatalf("gebeyabot: %v", err)
	}
}
