// Package main is a development utility that mints an access token for a profile so
// the club API can be exercised locally with curl. It signs with CLB_JWT_SECRET, the
// same secret the server reads. Do not use it against production.
//
// Usage: go run ./scripts <profile-id> [email] [ttl]
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/clubroom/clubroom/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <profile-id> [email] [ttl]", os.Args[0])
	}

	profileID := os.Args[1]
	if _, err := uuid.Parse(profileID); err != nil {
		log.Fatalf("profile id must be a UUID: %v", err)
	}

	email := ""
	if len(os.Args) > 2 {
		email = os.Args[2]
	}

	ttl := 24 * time.Hour
	if len(os.Args) > 3 {
		d, err := time.ParseDuration(os.Args[3])
		if err != nil {
			log.Fatalf("invalid ttl: %v", err)
		}
		ttl = d
	}

	if os.Getenv(auth.SecretEnvVar) == "" {
		log.Fatalf("%s must be set to the server's secret", auth.SecretEnvVar)
	}
	if err := auth.ValidateJWTSecret(""); err != nil {
		log.Fatal(err)
	}

	token, err := auth.GenerateJWT(profileID, email, ttl)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(token)
	fmt.Println()
	fmt.Printf("curl -H 'Authorization: Bearer %s' http://localhost:8080/api/club\n", token)
}
