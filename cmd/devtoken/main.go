package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ghiblyze/internal/infra/clerk"
)

func main() {
	var (
		userFlag   string
		localeFlag string
		ttlFlag    time.Duration
	)
	flag.StringVar(&userFlag, "user", "", "user ID to place in the sub claim")
	flag.StringVar(&localeFlag, "locale", "", "optional locale claim (en or ja)")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	user := strings.TrimSpace(userFlag)
	if user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(1)
	}
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}

	token, err := clerk.SignHMAC(secret, user, strings.TrimSpace(localeFlag), ttlFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
