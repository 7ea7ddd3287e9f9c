package main

import (
	"context"
	"errors"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"

	"taskmanager/internal/database"
	"taskmanager/internal/domain"
	"taskmanager/internal/logging"
	"taskmanager/internal/repository"
)

const (
	demoEmail    = "demo@taskmanager.local"
	demoUsername = "demo"
	demoPassword = "demo1234"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "taskmanager.db"
	}
	logger := logging.New(os.Getenv("LOG_LEVEL")).With("job", "seed")

	db, err := database.Connect(dsn, logger)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)
	tasks := repository.NewTaskRepository(db)

	if _, err := users.GetByEmail(ctx, demoEmail); err == nil {
		log.Printf("demo user %s already exists, nothing to do", demoEmail)
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		log.Fatalf("lookup demo user: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	demo := &domain.User{Username: demoUsername, Email: demoEmail, PasswordHash: string(hash)}
	if err := users.Create(ctx, demo); err != nil {
		log.Fatalf("create demo user: %v", err)
	}

	samples := []struct {
		title, description string
		status             domain.TaskStatus
	}{
		{"Set up project board", "Columns for todo, doing, done", domain.TaskCompleted},
		{"Write onboarding notes", "Short guide for new teammates", domain.TaskInProgress},
		{"Plan sprint review", "Collect demos from each team", domain.TaskTodo},
		{"Rotate API secrets", "Access and refresh secrets, prod only", domain.TaskTodo},
	}
	for _, s := range samples {
		t := &domain.Task{
			UserID:      demo.ID,
			Title:       s.title,
			Description: s.description,
			Status:      s.status,
			CreatedBy:   demo.ID,
			UpdatedBy:   demo.ID,
		}
		if err := tasks.Create(ctx, t); err != nil {
			log.Fatalf("create task %q: %v", s.title, err)
		}
	}

	log.Printf("seeded demo user %s (password %s) with %d tasks", demoEmail, demoPassword, len(samples))
}
