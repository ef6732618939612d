package main

import (
	"context"
	"errors"
	"log"
	"os"

	"gorm.io/gorm"

	"tasklist/internal/auth"
	"tasklist/internal/config"
	"tasklist/internal/db"
	"tasklist/internal/model"
	"tasklist/internal/repository"
)

// Seeds an initial admin identity so the admin surface is reachable on a
// fresh database. Idempotent: an existing admin email is left untouched.
func main() {
	log.Println("Starting seed script...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := gormDB.AutoMigrate(&model.User{}, &model.Todo{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	adminEmail := getEnv("SEED_ADMIN_EMAIL", "admin@example.com")
	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		log.Fatal("SEED_ADMIN_PASSWORD must be set")
	}

	ctx := context.Background()
	userRepo := repository.NewUserRepository(gormDB)

	if _, err := userRepo.FindByEmail(ctx, adminEmail); err == nil {
		log.Printf("Admin %s already exists, nothing to do", adminEmail)
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("Failed to check admin existence: %v", err)
	}

	hasher := auth.NewPasswordHasher()
	passwordHash, err := hasher.Hash(adminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	admin := &model.User{
		Name:         getEnv("SEED_ADMIN_NAME", "Administrator"),
		Email:        adminEmail,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	log.Printf("Seeded admin %s (id=%d)", admin.Email, admin.ID)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
