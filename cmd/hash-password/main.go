package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/service"
	"golang.org/x/term"
)

// Prints a bcrypt hash suitable for ADMIN_PASS_HASH.
func main() {
	cfg := config.Load()
	authService := service.NewAuthService(cfg)

	fmt.Println("=== Generate Admin Password Hash ===")

	fmt.Print("Enter Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}
	if len(first) < 8 {
		fmt.Println("Error: Password must be at least 8 characters")
		os.Exit(1)
	}

	fmt.Print("Repeat Password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}
	if string(first) != string(second) {
		fmt.Println("Error: Passwords do not match")
		os.Exit(1)
	}

	hash, err := authService.HashPassword(string(first))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nADMIN_PASS_HASH='%s'\n", hash)
}
