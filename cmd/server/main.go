package main

import (
	"github.com/sentinelhealth/fraudmap/internal/server"
	"github.com/sentinelhealth/fraudmap/internal/util"
	"github.com/sentinelhealth/fraudmap/pkg/logger"
	"github.com/sentinelhealth/fraudmap/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
