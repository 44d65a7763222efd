// genkey prints a fresh api key/secret pair and the bcrypt hash to
// store in the users table.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"

	"papertrade/internal/auth"
)

func main() {
	key := randomHex(16)
	secret := randomHex(32)
	hash, err := auth.HashSecret(secret)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("api key:     %s\n", key)
	fmt.Printf("api secret:  %s\n", secret)
	fmt.Printf("secret hash: %s\n", hash)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		log.Fatal(err)
	}
	return hex.EncodeToString(buf)
}
