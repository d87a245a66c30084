// Command tokengen mints admin bearer tokens for the admin API.
//
//	JWT_SECRET=... tokengen -admin 3 -ttl 12h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aneupi/finance-engine/api"
	"github.com/aneupi/finance-engine/config"
	"github.com/aneupi/finance-engine/generic"
)

func main() {
	envFile := flag.String("env", ".env", "Path of the .env file")
	admin := flag.Int64("admin", 0, "Administrator id (required, > 0)")
	role := flag.String("role", api.RoleAdmin, "Role claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime, 0 for no expiry")
	flag.Parse()

	if *admin <= 0 {
		fmt.Fprintln(os.Stderr, "tokengen: -admin must be a positive id")
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "tokengen: JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := api.NewAuthenticator(cfg.JWTSecret).Issue(generic.AdminID(*admin), *role, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
