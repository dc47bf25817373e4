package main

// admintoken mints a manager bearer token for the back-office endpoints.
// The secret comes from ADMIN_TOKEN_SECRET so it never lands in shell history.

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aimstoreapp/aimstore/internal/handlers"
)

func main() {
	subject := flag.String("subject", "", "who the token is issued to, e.g. ops@example.com")
	ttl := flag.Duration("ttl", 12*time.Hour, "how long the token stays valid")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "admintoken: -subject is required")
		flag.Usage()
		os.Exit(2)
	}

	secret := os.Getenv("ADMIN_TOKEN_SECRET")
	if len(secret) < 32 {
		fmt.Fprintln(os.Stderr, "admintoken: ADMIN_TOKEN_SECRET must be set to at least 32 bytes")
		os.Exit(2)
	}

	token, err := handlers.IssueManagerToken(secret, *subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
