//go:build unit

package license_test

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/LerianStudio/lib-licensing/licensing/license"
	"github.com/stretchr/testify/require"
)

const testPackage = "me.carda.awesome_notifications_fcm.example"

var (
	issuerKey = sync.OnceValue(func() *rsa.PrivateKey {
		return mustGenerateKey(2048)
	})
	otherIssuerKey = sync.OnceValue(func() *rsa.PrivateKey {
		return mustGenerateKey(2048)
	})
)

func mustGenerateKey(bits int) *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		panic(err)
	}

	return key
}

// sign produces the base64 payload an issuer would hand out for message.
func sign(t *testing.T, key *rsa.PrivateKey, message string) string {
	t.Helper()

	digest := sha256.Sum256([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)

	return base64.StdEncoding.EncodeToString(sig)
}

func plainKey(t *testing.T, packageID string) string {
	t.Helper()

	return sign(t, issuerKey(), packageID)
}

func versionedKey(t *testing.T, version, packageID string) string {
	t.Helper()

	return "single:" + version + ":" + sign(t, issuerKey(), version+":"+packageID)
}

func newTestVerifier(t *testing.T, opts ...license.Option) *license.Verifier {
	t.Helper()

	all := append([]license.Option{license.WithPublicKey(&issuerKey().PublicKey)}, opts...)

	v, err := license.New(all...)
	require.NoError(t, err)

	return v
}

// corrupt flips one bit of the decoded signature and re-encodes it.
func corrupt(t *testing.T, payload string) string {
	t.Helper()

	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)

	raw[len(raw)/2] ^= 0x01

	return base64.StdEncoding.EncodeToString(raw)
}

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// alterLastChar swaps the last non-padding character of payload for its
// neighbour in the alphabet, touching only the bits the final character
// carries beyond the encoded bytes when the payload is padded.
func alterLastChar(t *testing.T, payload string) string {
	t.Helper()

	end := len(strings.TrimRight(payload, "="))
	require.Positive(t, end)

	idx := strings.IndexByte(base64Alphabet, payload[end-1])
	require.GreaterOrEqual(t, idx, 0)

	return payload[:end-1] + string(base64Alphabet[idx^1]) + payload[end:]
}
