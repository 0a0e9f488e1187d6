package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/service"
	"golang.org/x/term"
)

func main() {
	var (
		subject   string
		name      string
		tokenType string
		scopes    string
		revoke    string
		until     string
	)
	flag.StringVar(&subject, "subject", "", "Candidate or proctor id")
	flag.StringVar(&name, "name", "", "Display name")
	flag.StringVar(&tokenType, "type", string(service.TokenTypeCandidate), "Token type: candidate or proctor")
	flag.StringVar(&scopes, "scopes", "", "Comma-separated test ids a proctor may manage (* for all)")
	flag.StringVar(&revoke, "revoke", "", "Revoke the token with this jti instead of issuing one")
	flag.StringVar(&until, "until", "", "RFC3339 expiry of the revoked token (default: now + JWT expiry)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if revoke != "" {
		expiresAt := time.Now().Add(cfg.JWTExpiry)
		if until != "" {
			t, err := time.Parse(time.RFC3339, until)
			if err != nil {
				fmt.Println("Error: -until must be RFC3339")
				os.Exit(2)
			}
			expiresAt = t
		}

		ctx := context.Background()
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		if err := service.NewAuthService(cfg, rdb).RevokeToken(ctx, revoke, expiresAt); err != nil {
			log.Fatal().Err(err).Msg("Failed to revoke token")
		}
		fmt.Printf("Token %s revoked until %s\n", revoke, expiresAt.Format(time.RFC3339))
		return
	}

	// ─── CLI Input ─────────────────────────────────────────────────────
	// Prompt for missing fields only when a person is at the keyboard.
	if term.IsTerminal(int(os.Stdin.Fd())) {
		reader := bufio.NewReader(os.Stdin)
		if subject == "" {
			fmt.Print("Enter Subject ID: ")
			subject, _ = reader.ReadString('\n')
			subject = strings.TrimSpace(subject)
		}
		if name == "" {
			fmt.Print("Enter Name (optional): ")
			name, _ = reader.ReadString('\n')
			name = strings.TrimSpace(name)
		}
	}
	if subject == "" {
		fmt.Println("Error: Subject is required")
		os.Exit(2)
	}

	tt := service.TokenType(tokenType)
	if tt != service.TokenTypeCandidate && tt != service.TokenTypeProctor {
		fmt.Println("Error: Type must be candidate or proctor")
		os.Exit(2)
	}

	var scopeList []string
	for _, s := range strings.Split(scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopeList = append(scopeList, s)
		}
	}
	if tt == service.TokenTypeProctor && len(scopeList) == 0 {
		fmt.Println("Warning: proctor token has no scopes and cannot manage any test")
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	token, claims, err := service.NewAuthService(cfg, nil).GenerateToken(subject, name, tt, scopeList...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	fmt.Fprintf(os.Stderr, "Issued %s token for %q (jti %s, expires %s)\n",
		tt, subject, claims.ID, claims.ExpiresAt.Time.Format(time.RFC3339))
	fmt.Println(token)
}
