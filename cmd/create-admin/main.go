package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/database"
	"github.com/stemsi/elearning/internal/logger"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/repository"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)

	// The admin role comes from `seed`; refuse to create an account without it.
	roles, err := roleRepo.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list roles")
	}
	var adminRoleID string
	for _, r := range roles {
		if r.Name == model.RoleAdmin {
			adminRoleID = r.ID
		}
	}
	if adminRoleID == "" {
		fmt.Println("Error: the admin role does not exist. Run `seed` first.")
		os.Exit(1)
	}

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Admin User ===")

	fmt.Print("Enter First Name: ")
	firstName, _ := reader.ReadString('\n')
	firstName = strings.TrimSpace(firstName)
	if firstName == "" {
		fmt.Println("Error: First name is required")
		return
	}

	fmt.Print("Enter Last Name: ")
	lastName, _ := reader.ReadString('\n')
	lastName = strings.TrimSpace(lastName)

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	// Operators created here skip email verification.
	admin := &model.User{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: string(hashedPassword),
		IsVerified:   true,
	}
	if err := userRepo.Create(ctx, admin, []string{adminRoleID}); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			fmt.Println("Error: a user with this email already exists")
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! Admin '%s %s' (%s) created with ID: %s\n", admin.FirstName, admin.LastName, admin.Email, admin.ID)
}
