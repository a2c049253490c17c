package main

import (
	"fmt"
	"log"

	"telegram-campaign-dispatch/internal/adapters/db/postgres"
	"telegram-campaign-dispatch/internal/config"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	fmt.Println("Connecting to database...")

	repo, err := postgres.New(conf.DatabaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer repo.Close()

	fmt.Println("Running migrations...")

	if err := repo.AutoMigrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	fmt.Println("Migration complete: recipients, bookings, campaigns, recipient_outcomes")
}
