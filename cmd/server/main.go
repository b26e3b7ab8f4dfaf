package main

import (
	"log"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/config"
	"github.com/alkime/wardrobe/internal/logger"
	"github.com/alkime/wardrobe/internal/server"
	"github.com/alkime/wardrobe/internal/workdir"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.SetupLogger(cfg)

	dir := cfg.ArtifactDir
	if dir == "" {
		layout, err := workdir.Default()
		if err != nil {
			log.Fatalf("Failed to resolve artifact directory: %v", err)
		}

		dir = layout.LibraryDir()
	}

	l.Info("Starting wardrobe artifact server",
		"env", cfg.Env,
		"port", cfg.Port,
		"artifact_dir", dir,
	)

	srv, err := server.New(cfg, artifact.NewLibrary(dir), l)
	if err != nil {
		l.Error("Failed to configure server", "error", err)
		log.Fatalf("Fatal: %v", err)
	}

	if err := server.Run(srv); err != nil {
		l.Error("Failed to start server", "error", err)
		log.Fatalf("Fatal: %v", err)
	}
}
