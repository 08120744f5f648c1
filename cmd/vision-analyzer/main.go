package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	visionanalyzer "github.com/menta2k/vision-analyzer"
)

func main() {
	// Progress and failures go to stdout, unprefixed
	logger := log.New(os.Stdout, "", 0)

	imagePath := visionanalyzer.DefaultImage
	switch len(os.Args) {
	case 1:
	case 2:
		imagePath = os.Args[1]
	default:
		logger.Printf("usage: %s [image]", filepath.Base(os.Args[0]))
		os.Exit(1)
	}

	err := visionanalyzer.Run(context.Background(), visionanalyzer.Options{
		SettingsPath: "appsettings.json",
		ImagePath:    imagePath,
		Logger:       logger,
	})
	if err != nil {
		logger.Println(err)
		os.Exit(1)
	}
}
