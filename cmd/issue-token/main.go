// Command issue-token mints an operator JWT after checking the operator
// passphrase, or with -hash prints the bcrypt hash of a new passphrase for
// OPERATOR_PASSPHRASE_HASH.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/tenacity/ops-backend/internal/config"
	"github.com/tenacity/ops-backend/internal/logger"
	"github.com/tenacity/ops-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	var hashMode bool
	flag.BoolVar(&hashMode, "hash", false, "Hash a new passphrase instead of issuing a token")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	authService := service.NewAuthService(cfg)

	// ─── Hash Mode ─────────────────────────────────────────────────────
	if hashMode {
		passphrase := readPassphrase("Enter new passphrase: ")
		if len(passphrase) < 12 {
			fmt.Println("Error: Passphrase must be at least 12 characters")
			os.Exit(1)
		}
		if confirm := readPassphrase("Confirm passphrase: "); confirm != passphrase {
			fmt.Println("Error: Passphrases do not match")
			os.Exit(1)
		}
		hash, err := authService.HashPassphrase(passphrase)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to hash passphrase")
		}
		fmt.Printf("OPERATOR_PASSPHRASE_HASH=%s\n", hash)
		return
	}

	// ─── Issue Token ───────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Operator name: ")
	subject, _ := reader.ReadString('\n')
	subject = strings.TrimSpace(subject)
	if subject == "" {
		fmt.Println("Error: Operator name is required")
		os.Exit(1)
	}

	err := authService.CheckPassphrase(readPassphrase("Passphrase: "))
	switch {
	case errors.Is(err, service.ErrNoPassphrase):
		fmt.Println("Error: OPERATOR_PASSPHRASE_HASH is not set; generate one with -hash")
		os.Exit(1)
	case err != nil:
		log.Warn().Str("operator", subject).Msg("Rejected operator passphrase")
		fmt.Println("Error: Invalid passphrase")
		os.Exit(1)
	}

	token, expires, err := authService.IssueOperatorToken(subject)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}
	log.Info().Str("operator", subject).Time("expires_at", expires).Msg("Operator token issued")
	fmt.Println(token)
}

func readPassphrase(prompt string) string {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading passphrase")
		os.Exit(1)
	}
	return string(b)
}
