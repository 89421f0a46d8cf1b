// Command devtoken mints a bearer token for local testing, signed with the
// configured jwt.secret.
//
//	go run ./cmd/devtoken -user alice -ttl 2h
package main

import (
	"alcyxob/upload-broker/internal/auth"
	"alcyxob/upload-broker/internal/config"
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	userID := flag.String("user", "", "owner id to put in the uid claim")
	ttl := flag.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: devtoken -user <id> [-ttl 1h]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.GenerateToken(cfg.JWT.Secret, *userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("token: %s\nexpires: %s\n", token, time.Now().Add(*ttl).UTC().Format(time.RFC3339))
}
