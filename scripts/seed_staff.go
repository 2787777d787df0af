package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"garage/internal/database"
	"garage/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type StaffConfig struct {
	Users    []models.User    `yaml:"users"`
	Vehicles []models.Vehicle `yaml:"vehicles"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		staffPath = flag.String("staff", "configs/staff.yaml", "path to staff.yaml")
		dbPath    = flag.String("db", "./data/garage.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*staffPath)
	if err != nil {
		return fmt.Errorf("read staff: %w", err)
	}
	var cfg StaffConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse staff: %w", err)
	}
	if len(cfg.Users) == 0 && len(cfg.Vehicles) == 0 {
		return fmt.Errorf("no users or vehicles in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := 0
	vehicles := 0
	for i := range cfg.Users {
		u := cfg.Users[i]
		if u.ID == 0 || u.Role == "" {
			continue
		}
		if err = db.UpsertUser(ctx, &u); err != nil {
			return fmt.Errorf("upsert user %d: %w", u.ID, err)
		}
		users++
	}
	for i := range cfg.Vehicles {
		v := cfg.Vehicles[i]
		if v.ID == 0 || v.CustomerID == 0 {
			continue
		}
		if err = db.UpsertVehicle(ctx, &v); err != nil {
			return fmt.Errorf("upsert vehicle %d: %w", v.ID, err)
		}
		vehicles++
	}

	fmt.Printf("done: users=%d vehicles=%d\n", users, vehicles)
	return nil
}
