// Command mktoken signs a development bearer token for a feed author.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-feed/pkg/simplefeed"
	"github.com/tendant/simple-feed/pkg/simplefeed/identity"
)

type Config struct {
	JWTSecret string `env:"JWT_SECRET" env-default:""`
}

func main() {
	email := flag.String("email", "", "author email to embed in the token")
	subject := flag.String("sub", "", "external subject identifier (optional)")
	expire := flag.Duration("expire", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: mktoken -email user@example.com [-sub id] [-expire 24h]")
		os.Exit(2)
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	if config.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	verifier, err := identity.NewJWTVerifier(config.JWTSecret)
	if err != nil {
		slog.Error("Failed to create verifier", "err", err)
		os.Exit(1)
	}

	token, err := verifier.Issue(&simplefeed.Principal{
		ExternalID: *subject,
		Email:      *email,
	}, *expire)
	if err != nil {
		slog.Error("Failed to sign token", "err", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
