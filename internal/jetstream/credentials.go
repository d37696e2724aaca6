package jetstream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

var errAmbiguousCredentials = errors.New("only one of nkey seed, creds file or token may be set")

// Credentials authenticate the NATS connection. The zero value connects
// anonymously.
type Credentials struct {
	NKeySeed  string
	CredsFile string
	Token     string
}

// Validate checks that at most one method is configured and that it is
// usable.
func (c *Credentials) Validate(_ context.Context) error {
	if c == nil {
		return nil
	}
	set := 0
	for _, v := range []string{c.NKeySeed, c.CredsFile, c.Token} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	if set > 1 {
		return errAmbiguousCredentials
	}
	if c.NKeySeed != "" {
		if _, err := nkeys.FromSeed([]byte(c.NKeySeed)); err != nil {
			return fmt.Errorf("invalid nkey seed: %w", err)
		}
	}
	if c.CredsFile != "" {
		if _, err := os.Stat(c.CredsFile); err != nil {
			return fmt.Errorf("invalid creds file: %w", err)
		}
	}
	return nil
}

// Options returns the connection options for the configured method.
func (c *Credentials) Options() ([]nats.Option, error) {
	switch {
	case c == nil:
		return nil, nil
	case c.NKeySeed != "":
		kp, err := nkeys.FromSeed([]byte(c.NKeySeed))
		if err != nil {
			return nil, fmt.Errorf("invalid nkey seed: %w", err)
		}
		pub, err := kp.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive nkey public key: %w", err)
		}
		return []nats.Option{nats.Nkey(pub, kp.Sign)}, nil
	case c.CredsFile != "":
		return []nats.Option{nats.UserCredentials(c.CredsFile)}, nil
	case c.Token != "":
		return []nats.Option{nats.Token(c.Token)}, nil
	}
	return nil, nil
}
