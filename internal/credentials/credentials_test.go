package credentials

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	existing map[string]bool
	err      error
	checked  []string
}

func (f *fakeStore) TrackingNumberExists(ctx context.Context, number string) (bool, error) {
	f.checked = append(f.checked, number)
	if f.err != nil {
		return false, f.err
	}
	return f.existing[number], nil
}

func TestGenerate_Shape(t *testing.T) {
	g := New(&fakeStore{}, 0)

	c, err := g.Generate(context.Background())
	require.NoError(t, err)

	require.Len(t, c.TrackingNumber, 12)
	for _, r := range c.TrackingNumber {
		require.Contains(t, trackingNumberAlphabet, string(r))
	}

	// 32 bytes of entropy base64url-encode to 43 chars, no padding.
	require.Len(t, c.TrackingSecret, 43)
	require.False(t, strings.ContainsAny(c.TrackingSecret, "+/="))

	require.WithinDuration(t, time.Now().UTC().Add(DefaultRetention), c.Expiry, time.Minute)
}

func TestGenerate_Uniqueness(t *testing.T) {
	g := New(&fakeStore{}, time.Hour)

	numbers := map[string]struct{}{}
	secrets := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		c, err := g.Generate(context.Background())
		require.NoError(t, err)
		_, dupN := numbers[c.TrackingNumber]
		_, dupS := secrets[c.TrackingSecret]
		require.False(t, dupN, "duplicate tracking number %s", c.TrackingNumber)
		require.False(t, dupS, "duplicate secret")
		numbers[c.TrackingNumber] = struct{}{}
		secrets[c.TrackingSecret] = struct{}{}
	}
}

func TestRandomTrackingNumber_FullLengthAndAlphabet(t *testing.T) {
	// The sampler rejects some random bytes; the number must still come out
	// at full length with every character from the alphabet.
	seen := map[byte]bool{}
	for i := 0; i < 500; i++ {
		n, err := randomTrackingNumber()
		require.NoError(t, err)
		require.Len(t, n, trackingNumberLen)
		for j := 0; j < len(n); j++ {
			require.Contains(t, trackingNumberAlphabet, string(n[j]))
			seen[n[j]] = true
		}
	}
	// 6000 characters over a 36-char alphabet: every character shows up.
	require.Len(t, seen, len(trackingNumberAlphabet))
}

func TestGenerate_RetriesOnCollision(t *testing.T) {
	taken := 0
	store := storeFunc(func(ctx context.Context, n string) (bool, error) {
		taken++
		return taken <= 2, nil // first two candidates collide
	})
	g := New(store, time.Hour)

	c, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, c.TrackingNumber)
	require.Equal(t, 3, taken)
}

type storeFunc func(ctx context.Context, number string) (bool, error)

func (f storeFunc) TrackingNumberExists(ctx context.Context, number string) (bool, error) {
	return f(ctx, number)
}

func TestGenerate_FailsClosedWhenStoreDown(t *testing.T) {
	g := New(&fakeStore{err: errors.New("pg down")}, time.Hour)

	c, err := g.Generate(context.Background())
	require.Error(t, err)
	require.Empty(t, c.TrackingNumber)
	require.Empty(t, c.TrackingSecret)
}

func TestGenerate_ConfiguredRetention(t *testing.T) {
	g := New(&fakeStore{}, 48*time.Hour)

	c, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().UTC().Add(48*time.Hour), c.Expiry, time.Minute)
}
