package main

import (
	"crypto/ecdsa"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// inspector derives the EOA address for a signer private key, the same way
// chainrpc.NewSoftwareSigner does, so an operator can verify a
// GATEWAY_SIGNER_KEY_<SCOPE> value before it is wired into the gateway.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/inspector <private_key_hex>")
		os.Exit(1)
	}

	pkHex := strings.TrimPrefix(os.Args[1], "0x")

	key, err := crypto.HexToECDSA(pkHex)
	if err != nil {
		log.Fatalf("invalid private key: %v", err)
	}

	pubKey, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		log.Fatalf("error casting public key to ECDSA")
	}
	addr := crypto.PubkeyToAddress(*pubKey)

	fmt.Printf("signer address: %s\n", addr.Hex())
}
