package refcode

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	hashids "github.com/speps/go-hashids/v2"
)

// Generator produces short, non-sequential public reference codes for
// produce requests and orders, so database ids never leak into URLs or
// receipts. Codes encode a nanosecond timestamp plus a process-local counter,
// which keeps them unique without a database round trip.
type Generator struct {
	h   *hashids.HashID
	seq atomic.Int64
}

func New(salt string) (*Generator, error) {
	data := hashids.NewData()
	data.Salt = salt
	data.MinLength = 10
	data.Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	h, err := hashids.NewWithData(data)
	if err != nil {
		return nil, err
	}
	return &Generator{h: h}, nil
}

// Request produces a PRQ-XXXXXXXXXX code.
func (g *Generator) Request() (string, error) {
	return g.generate("PRQ")
}

// Order produces an ORD-XXXXXXXXXX code.
func (g *Generator) Order() (string, error) {
	return g.generate("ORD")
}

func (g *Generator) generate(prefix string) (string, error) {
	code, err := g.encode(time.Now().UnixMilli(), g.seq.Add(1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", prefix, code), nil
}

func (g *Generator) encode(parts ...int64) (string, error) {
	return g.h.EncodeInt64(parts)
}

// Decode strips the prefix and recovers the encoded values. Used to verify a
// presented reference was minted with our salt.
func (g *Generator) Decode(ref string) ([]int64, error) {
	_, code, found := strings.Cut(ref, "-")
	if !found {
		return nil, fmt.Errorf("malformed reference %q", ref)
	}
	ids, err := g.h.DecodeInt64WithError(code)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("malformed reference %q", ref)
	}
	return ids, nil
}
