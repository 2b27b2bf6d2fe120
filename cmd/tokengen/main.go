// Package main provides a CLI tool for generating caller tokens for the
// attest API. These tokens use the dev signing key by default and will NOT
// work against a server configured with a real key.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	contracts "attest/contracts/ledger"
	"attest/internal/callertoken"
)

const (
	// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Address   string            `json:"address"`
	Role      string            `json:"role"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	address := flag.String("address", "", "Ledger address the token identifies (required)")
	role := flag.String("role", "student", "Caller role: none, student, institution, employer, admin")
	key := flag.String("key", "", "Signing key. Defaults to the dev key used when JWT_SIGNING_KEY is unset.")
	ttl := flag.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Usage = printUsage
	flag.Parse()

	if *address == "" {
		fmt.Fprintln(os.Stderr, "Error: -address is required")
		printUsage()
		os.Exit(1)
	}
	if !contracts.Role(*role).Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", *role)
		os.Exit(1)
	}

	signingKey := *key
	keyType := "custom"
	if signingKey == "" {
		signingKey = devSigningKey
		keyType = "dev"
	}

	svc := callertoken.NewService(signingKey, *ttl)
	token, err := svc.Issue(*address, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Address:   *address,
			Role:      *role,
			ExpiresIn: ttl.String(),
			Usage: map[string]string{
				"header":      "Authorization: Bearer <token>",
				"signing_key": keyType,
			},
		})
		return
	}

	fmt.Println("Caller Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Signing Key: %s\n", keyType)
	fmt.Printf("Expires In:  %s\n", *ttl)
	fmt.Printf("Address:     %s\n", *address)
	fmt.Printf("Role:        %s\n", *role)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/...")
}

func printUsage() {
	fmt.Println(`tokengen - Generate caller tokens for the attest API

WARNING: The default dev signing key will NOT work against a server
         configured with a real JWT_SIGNING_KEY.

Usage:
  tokengen -address <ledger-address> [flags]

Examples:
  # Student token for a seeded address
  tokengen -address 0xstu1

  # Institution token with a custom TTL
  tokengen -address 0xuni1 -role institution -ttl 1h

  # Admin token matching ATTEST_ADMIN_ADDRESS
  tokengen -address 0xadmin -role admin

  # Output as JSON
  tokengen -address 0xstu1 -json`)
	fmt.Println()
	flag.PrintDefaults()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
