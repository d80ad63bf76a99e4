// cmd/tool/main.go
//
// Dev utility for local setups:
//
//	tool -vault-key        print a fresh VAULT_KEY for the sealed file store
//	tool -id-token EMAIL   mint a dev Google-style ID token for the stub
//	                       backend used in local compose environments
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func main() {
	vaultKey := flag.Bool("vault-key", false, "generate a VAULT_KEY for the sealed file store")
	idTokenEmail := flag.String("id-token", "", "mint a dev Google-style ID token for this email")
	flag.Parse()

	switch {
	case *vaultKey:
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(err)
		}
		fmt.Println(hex.EncodeToString(key))

	case *idTokenEmail != "":
		// The stub backend verifies with a shared dev secret, never in prod.
		secret := []byte(os.Getenv("DEV_TOKEN_SECRET"))
		if len(secret) == 0 {
			secret = []byte("dev-only-not-a-secret")
		}

		claims := jwt.MapClaims{
			"iss":            "https://accounts.google.com",
			"aud":            os.Getenv("GOOGLE_OAUTH_CLIENT_ID"),
			"sub":            uuid.New().String(),
			"email":          *idTokenEmail,
			"email_verified": true,
			"name":           "Dev User",
			"iat":            time.Now().Unix(),
			"exp":            time.Now().Add(time.Hour).Unix(),
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		s, err := token.SignedString(secret)
		if err != nil {
			panic(err)
		}
		fmt.Println(s)

	default:
		flag.Usage()
		os.Exit(2)
	}
}
