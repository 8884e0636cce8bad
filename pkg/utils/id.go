package utils

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid"
)

// connectionIDAlphabet is URL safe so identities can travel in query strings.
const connectionIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_-"

const connectionIDLength = 21

// NewConnectionID returns a random identity for a signaling connection.
func NewConnectionID() string {
	id, err := gonanoid.Generate(connectionIDAlphabet, connectionIDLength)
	if err != nil {
		// crypto/rand failure; fall back to a uuid rather than refusing the client
		return uuid.NewString()
	}
	return id
}

// NewInstanceID identifies this server process on published events.
func NewInstanceID() string {
	return uuid.NewString()
}
