package main

import (
	"context"
	"log"
	"os"

	"github.com/formicag/ACEReportHub/internal/api"
	"github.com/formicag/ACEReportHub/internal/db"
	"github.com/formicag/ACEReportHub/internal/mailer"
	"github.com/formicag/ACEReportHub/internal/policy"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	mailCfg, err := loadMailConfig()
	if err != nil {
		log.Fatalf("Email config failed: %v", err)
	}

	srv, err := api.NewServer(pool, policy.Default(), mailCfg)
	if err != nil {
		log.Fatalf("Server setup failed: %v", err)
	}

	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}

func loadMailConfig() (mailer.Config, error) {
	if path := os.Getenv("EMAIL_CONFIG_PATH"); path != "" {
		return mailer.LoadConfigFile(path)
	}
	return mailer.LoadConfig()
}
