// Command seed bootstraps the first admin account. Admin elevation requires
// an existing admin session, so the initial admin has to be created outside
// the HTTP surface.
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"userhub/internal/config"
	"userhub/internal/db"
	"userhub/internal/model"
	"userhub/internal/repository"
)

func main() {
	log.Println("Starting admin bootstrap...")

	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	email := os.Getenv("ADMIN_EMAIL")
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || username == "" || password == "" {
		log.Fatal("ADMIN_EMAIL, ADMIN_USERNAME and ADMIN_PASSWORD must be set")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	repo := repository.NewUserRepository(gormDB)
	ctx := context.Background()

	existing, err := repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("Failed to look up admin: %v", err)
	}

	if existing != nil {
		existing.Role = model.RoleAdmin
		existing.Verified = true
		existing.PasswordHash = string(hash)
		if err := repo.Update(ctx, existing); err != nil {
			log.Fatalf("Failed to update admin: %v", err)
		}
		log.Printf("Updated existing account %s to admin", email)
		return
	}

	admin := &model.User{
		FirstName:    getEnvDefault("ADMIN_FIRST_NAME", "Admin"),
		LastName:     getEnvDefault("ADMIN_LAST_NAME", "User"),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		Verified:     true,
	}
	if err := repo.Create(ctx, admin); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	log.Printf("Created admin account %s (%s)", username, email)
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
