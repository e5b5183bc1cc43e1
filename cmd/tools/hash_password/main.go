// Command hash_password produces a bcrypt hash suitable for the
// ADMIN_PASSWORD_HASH environment variable of the admin API server.
//
// Usage:
//
//	go run cmd/tools/hash_password/main.go <password>
//
// Respects BCRYPT_COST and PASSWORD_PEPPER the same way the server does.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/jonathan/b2b-migrator/internal/config"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: hash_password <password>")
		os.Exit(1)
	}

	passwords, err := config.NewPasswordConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	hash, err := passwords.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
