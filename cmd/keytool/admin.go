package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/ruteri/keymaster/kms"
	"github.com/ruteri/keymaster/secret"
)

// adminSigner signs shares for a custodian. Output lines carry the share,
// the signature and the custodian's public key, as shamir combine expects.
type adminSigner struct {
	privateKey ed25519.PrivateKey
	publicKey  string
}

func loadAdminSigner(path string) (*adminSigner, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read admin key: %w", err)
	}
	defer secret.Zero(contents)

	trimmed := bytes.TrimSpace(contents)
	seed := make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
	defer secret.Zero(seed)

	n, err := base64.StdEncoding.Decode(seed, trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode admin key: %w", err)
	}
	seed = seed[:n]
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("admin key must be a %d byte ed25519 seed", ed25519.SeedSize)
	}

	privateKey := ed25519.NewKeyFromSeed(seed)
	return &adminSigner{
		privateKey: privateKey,
		publicKey:  base64.StdEncoding.EncodeToString(privateKey.Public().(ed25519.PublicKey)),
	}, nil
}

func (s *adminSigner) sign(share []byte) string {
	signature := kms.SignShare(share, s.privateKey)
	return base64.StdEncoding.EncodeToString(signature) + " " + s.publicKey
}

func parseAdminPubkeys(encoded []string) ([]ed25519.PublicKey, error) {
	keys := make([]ed25519.PublicKey, 0, len(encoded))
	for _, e := range encoded {
		raw, err := base64.StdEncoding.DecodeString(e)
		if err != nil {
			return nil, fmt.Errorf("invalid admin public key %q: %w", e, err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid admin public key %q: expected %d bytes", e, ed25519.PublicKeySize)
		}
		keys = append(keys, ed25519.PublicKey(raw))
	}
	return keys, nil
}
