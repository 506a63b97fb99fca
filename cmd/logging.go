package cmd

import (
	"github.com/achilleasa/stereoscan/log"
	"github.com/urfave/cli"
)

var logger = log.New("stereoscan")

func setupLogging(ctx *cli.Context) {
	if name := ctx.GlobalString("log-level"); name != "" {
		if level, ok := log.ParseLevel(name); ok {
			log.SetLevel(level)
		} else {
			logger.Warningf("ignoring unknown log level %q", name)
		}
	}

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
