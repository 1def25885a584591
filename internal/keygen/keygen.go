// Package keygen produces the credential tokens handed out at project
// creation, backed by nanoid over crypto/rand.
package keygen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the character set used for the random portion of every key.
var Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Length is the number of random characters per key. 22 characters over a
// 62-symbol alphabet is just over 130 bits of entropy.
var Length = 22

// AdminPrefix marks admin keys so operators can tell them apart at a glance.
// It is a convenience only: authorization always compares the full key.
var AdminPrefix = "a-"

// Generator issues credential pairs. The zero value is ready to use.
type Generator struct{}

// UserKey returns a new write-only credential.
func (Generator) UserKey() (string, error) {
	key, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("keygen: %w", err)
	}
	return key, nil
}

// AdminKey returns a new read+write credential.
func (Generator) AdminKey() (string, error) {
	key, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("keygen: %w", err)
	}
	return AdminPrefix + key, nil
}
