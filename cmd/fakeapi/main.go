package main

import (
	"fmt"
	"net/http"
	"os"

	"library-client/apitest"
	"library-client/library"
)

// Runs the in-memory API double on a local port, seeded with one account
// per role and a small catalog. Handy for driving the client by hand.
func main() {
	addr := ":5000"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	srv := apitest.New()
	srv.SeedUser("Ada Admin", "admin@example.com", "admin123", library.RoleAdmin, true)
	srv.SeedUser("Liz Librarian", "librarian@example.com", "librarian123", library.RoleLibrarian, true)
	srv.SeedUser("Max Member", "member@example.com", "member123", library.RoleMember, true)
	srv.SeedBook("The Art of War", "Sun Tzu")
	srv.SeedBook("Animal Farm", "George Orwell")
	srv.SeedBook("The Three Musketeers", "Alexandre Dumas")

	fmt.Printf("Fake library API listening on %s\n", addr)
	fmt.Println("Accounts: admin@example.com/admin123, librarian@example.com/librarian123, member@example.com/member123")

	if err := http.ListenAndServe(addr, srv); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
