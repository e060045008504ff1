package main

import (
	"context"
	"os"

	"github.com/idaholeg/mediaportal/internal/app"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	application, err := app.New()
	if err != nil {
		log.WithField("error", err).Fatal("failed to initialize application")
	}

	if err := application.Run(context.Background()); err != nil {
		log.WithField("error", err).Fatal("application exited with error")
	}
}
