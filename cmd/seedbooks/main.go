package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"library-client/library"
)

// Bulk-loads a catalog from a CSV file (title,author,year,language) through
// the admin API. Year and language may be left empty.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <books.csv>\n", os.Args[0])
		os.Exit(1)
	}
	csvPath := os.Args[1]

	cfg, err := library.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	email := os.Getenv("LIBRARY_ADMIN_EMAIL")
	password := os.Getenv("LIBRARY_ADMIN_PASSWORD")
	if email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "Set LIBRARY_ADMIN_EMAIL and LIBRARY_ADMIN_PASSWORD to an admin account.")
		os.Exit(1)
	}

	api, err := library.NewClient(cfg, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The seeder never persists a session; a throwaway in-memory store is
	// enough to drive the login flow.
	sessions := library.NewSessionStore(library.NewMemKV())
	auth := library.NewAuthController(api, sessions)
	history := library.NewHistoryController(api)
	catalog := library.NewCatalogController(api, history)

	ctx := context.Background()

	role, err := auth.Login(ctx, email, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
		os.Exit(1)
	}
	if role != library.RoleAdmin {
		fmt.Fprintf(os.Stderr, "Account %s is %s, not admin.\n", email, role)
		os.Exit(1)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", csvPath, err)
		os.Exit(1)
	}
	defer f.Close()

	fmt.Printf("Importing books from %s...\n", csvPath)

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	successCount := 0
	errorCount := 0
	line := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			fmt.Printf("Line %d: ERROR - %v\n", line, err)
			errorCount++
			continue
		}
		if len(record) < 2 {
			fmt.Printf("Line %d: ERROR - need at least title and author\n", line)
			errorCount++
			continue
		}

		in := library.BookInput{
			Title:  strings.TrimSpace(record[0]),
			Author: strings.TrimSpace(record[1]),
		}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			year, err := strconv.Atoi(strings.TrimSpace(record[2]))
			if err != nil {
				fmt.Printf("Line %d: ERROR - invalid year %q\n", line, record[2])
				errorCount++
				continue
			}
			in.Year = &year
		}
		if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
			language := strings.TrimSpace(record[3])
			in.Language = &language
		}

		fmt.Printf("Importing: %s by %s... ", in.Title, in.Author)
		if err := catalog.Add(ctx, in); err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Println("SUCCESS")
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)
}
