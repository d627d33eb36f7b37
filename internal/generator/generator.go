// Package generator produces identifiers for encodes and the storage keys
// derived from them.
package generator

import (
	"github.com/google/uuid"
)

// Generator yields a new value of type T on every call.
type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator produces random UUIDv4 strings.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}

// EncodeID identifies one encode and where its container is stored.
type EncodeID struct {
	ID        string
	ObjectKey string
}

// EncodeIDGenerator derives object keys under a prefix from a string
// generator.
type EncodeIDGenerator struct {
	IDs    Generator[string]
	Prefix string
}

// NewEncodeIDGenerator returns a generator of random IDs stored under dca/.
func NewEncodeIDGenerator() *EncodeIDGenerator {
	return &EncodeIDGenerator{IDs: &UUIDV4Generator{}, Prefix: "dca"}
}

func (g *EncodeIDGenerator) Next() (EncodeID, error) {
	id, err := g.IDs.Next()
	if err != nil {
		return EncodeID{}, err
	}
	return EncodeID{ID: id, ObjectKey: g.Prefix + "/" + id + ".dca"}, nil
}

var _ Generator[EncodeID] = &EncodeIDGenerator{}
