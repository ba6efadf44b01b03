// Command token prints an access token for local testing.  Production
// tokens are issued by the identity provider with the same secret.
//
//	go run ./cmd/token -sub 42 -role PATIENT
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/clinic-appointment-scheduler/internal/model"
	"github.com/iliyamo/clinic-appointment-scheduler/internal/utils"
)

func main() {
	_ = godotenv.Load()

	sub := flag.Uint64("sub", 0, "user id placed in the sub claim")
	role := flag.String("role", model.RolePatient, "PATIENT or DOCTOR")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 secret (defaults to $JWT_SECRET)")
	flag.Parse()

	r := strings.ToUpper(*role)
	if r != model.RolePatient && r != model.RoleDoctor {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}
	tok, err := utils.NewAccessToken(*secret, *sub, r, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
