package main

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

func main() {
	path := "sccp.conf"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, IgnoreInlineComment: true}, path)
	if err != nil {
		fmt.Printf("failed to load %s: %v\n", path, err)
		os.Exit(1)
	}

	settings, err := LoadSettings(cfg)
	if err != nil {
		fmt.Printf("failed to parse settings: %v\n", err)
		os.Exit(1)
	}

	initLogging(cfg)
	defer closeLogging()
	coreLog.Infof("settings loaded from %s", path)

	if err := startGateway(settings, path); err != nil {
		coreLog.Errorf("sccpd: %v", err)
		closeLogging()
		os.Exit(1)
	}
	coreLog.Info("performed a graceful shutdown")
}
