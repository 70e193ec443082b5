// tokengen prints a signed session token for local testing.
// Usage: go run ./cmd/tokengen --config configs/engine.local.yaml --user alice
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rickgao/emission-engine/internal/auth"
	"github.com/rickgao/emission-engine/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/engine.local.yaml", "path to config file")
	user := flag.String("user", "", "user id to embed as the token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (default: auth.token_ttl)")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "--user is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *ttl > 0 {
		cfg.Auth.TokenTTL = *ttl
	}

	issuer, err := auth.NewIssuer(cfg.Auth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create issuer: %v\n", err)
		os.Exit(1)
	}

	token, err := issuer.Issue(*user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "token for %q valid until %s\n", *user, time.Now().Add(cfg.Auth.TokenTTL).UTC().Format(time.RFC3339))
	fmt.Println(token)
}
