package credentials

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
)

const (
	trackingNumberLen      = 12
	trackingNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	secretEntropyBytes = 32

	// DefaultRetention is the tracking-link lifetime when the config does not
	// set one.
	DefaultRetention = 30 * 24 * time.Hour
)

// Store answers uniqueness checks against existing deliveries.
type Store interface {
	TrackingNumberExists(ctx context.Context, number string) (bool, error)
}

// Generator issues tracking credentials: a short public number, a
// high-entropy secret that works as a bearer capability, and the link expiry.
type Generator struct {
	store     Store
	retention time.Duration
}

func New(store Store, retention time.Duration) *Generator {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Generator{store: store, retention: retention}
}

type Credentials struct {
	TrackingNumber string
	TrackingSecret string
	Expiry         time.Time
}

// Generate issues a fresh credential set. Number collisions are retried
// internally; if the store is unreachable no credential is issued.
func (g *Generator) Generate(ctx context.Context) (Credentials, error) {
	var number string
	for {
		n, err := randomTrackingNumber()
		if err != nil {
			return Credentials{}, err
		}
		exists, err := g.store.TrackingNumberExists(ctx, n)
		if err != nil {
			return Credentials{}, errors.Wrap(err, "check tracking number")
		}
		if !exists {
			number = n
			break
		}
	}

	secret, err := randomSecret()
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{
		TrackingNumber: number,
		TrackingSecret: secret,
		Expiry:         time.Now().UTC().Add(g.retention),
	}, nil
}

func randomTrackingNumber() (string, error) {
	// Rejection sampling keeps every alphabet character equally likely;
	// 252 is the largest multiple of len(trackingNumberAlphabet) below 256.
	const limit = 256 - 256%len(trackingNumberAlphabet)

	out := make([]byte, 0, trackingNumberLen)
	buf := make([]byte, trackingNumberLen)
	for len(out) < trackingNumberLen {
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, "read random")
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, trackingNumberAlphabet[int(b)%len(trackingNumberAlphabet)])
			if len(out) == trackingNumberLen {
				break
			}
		}
	}
	return string(out), nil
}

func randomSecret() (string, error) {
	buf := make([]byte, secretEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
