// Command adduser creates an account in the expense database.
//
// Usage:
//
//	adduser -username alice [-db data/spendlens.db]
//
// The password is read from the ADDUSER_PASSWORD environment variable to
// keep it out of shell history.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"spendlens/internal/auth"
	"spendlens/internal/config"
	"spendlens/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	username := flag.String("username", "", "username for the new account")
	dbPath := flag.String("db", cfg.SQLiteDBPath, "path to the SQLite database")
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "adduser: -username is required")
		flag.Usage()
		os.Exit(2)
	}

	password := os.Getenv("ADDUSER_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "adduser: set ADDUSER_PASSWORD")
		os.Exit(2)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adduser: %v\n", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adduser: open database: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	user, err := repo.CreateUser(context.Background(), *username, hash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adduser: create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created user %q (id %d)\n", user.Username, user.ID)
}
