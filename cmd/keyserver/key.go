package main

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/f3rmion/keyserver/bjj"
	"github.com/f3rmion/keyserver/group"
	"github.com/f3rmion/keyserver/keyshare"
)

// loadOrGenerateKey loads the node's Baby Jubjub secret key from file or
// generates a new one. An empty path yields an ephemeral key.
func loadOrGenerateKey(keyPath string) (group.Scalar, error) {
	if keyPath == "" {
		return generateNewKey()
	}

	data, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		return generateAndSaveKey(keyPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	if len(data) != bjj.ScalarSize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(data), bjj.ScalarSize)
	}

	key, err := (&bjj.BJJ{}).NewScalar().SetBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if key.IsZero() {
		return nil, fmt.Errorf("key file %s holds the zero scalar", keyPath)
	}
	return key, nil
}

func generateNewKey() (group.Scalar, error) {
	key, err := (&bjj.BJJ{}).RandomScalar(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

func generateAndSaveKey(path string) (group.Scalar, error) {
	key, err := generateNewKey()
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, key.Bytes(), 0600); err != nil {
		return nil, fmt.Errorf("save key to %s: %w", path, err)
	}
	return key, nil
}

// nodeIDOf returns the NodeID of the public key matching key.
func nodeIDOf(key group.Scalar) keyshare.NodeID {
	g := &bjj.BJJ{}
	return keyshare.NodeIDFromPoint(g.NewPoint().ScalarMult(key, g.Generator()))
}
