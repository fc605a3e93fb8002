package main

import (
	"fmt"
	"log"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Generates a fresh TOTP secret for the admin login. Save the secret to the
// ADMIN_TOTP_SECRET environment variable.
func main() {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Launchpad Admin",
		AccountName: "admin@launchpad",
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		log.Fatalf("Failed to generate TOTP secret: %v", err)
	}

	fmt.Println("============================================================")
	fmt.Println("TOTP Secret Generated")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Printf("Secret:  %s\n", key.Secret())
	fmt.Printf("OTP URL: %s\n", key.URL())
	fmt.Println()
	fmt.Println("Export it before starting the coordinator:")
	fmt.Printf("  export ADMIN_TOTP_SECRET='%s'\n", key.Secret())
}
