package license

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// minimumKeyBits rejects keys too short to be a real issuer key.
const minimumKeyBits = 2048

// embeddedPublicKeyPEM is the issuer key. It can verify, never sign.
const embeddedPublicKeyPEM = `-----BEGIN PUBLIC KEY-----
MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAuY/oPQ7V8YbctfCoreYS
eupcsJBk311Eqcld9v4mrKl+auzQsImqWjKNoM45JAJd4ugurSCYVC2W0Jm3Lmvs
sTH3lxQfjfRuFDHkTivm6HkyYlRs9U8Y3C5deg8wx97M0eTHpmTpDHfKUARUwDgY
QKo9qCte8Z/vSYCLp2AHi77AP688sT1fQwE9Wd2HCA7n/itbhrPRkaOmu7OXbNoF
0frMf8FekNda+4Xl7TeZsSk7Do89PGma9oZ8WRfCNF9u3NfXQRoum5tqeSHLn4/A
geicFP6s3fH35XvQhYoCz+1H+1QuHI8QxkuSV9XNSfzZHfDelXZOAOB/I0Cb/yad
OwIDAQAB
-----END PUBLIC KEY-----
`

var errNotRSAKey = errors.New("public key is not an RSA key")

// EmbeddedPublicKey parses the issuer key compiled into the package.
func EmbeddedPublicKey() (*rsa.PublicKey, error) {
	return ParsePublicKey([]byte(embeddedPublicKeyPEM))
}

// ParsePublicKey accepts a PEM "PUBLIC KEY" (PKIX) or "RSA PUBLIC KEY"
// (PKCS#1) block, or the bare base64 of a PKIX DER key.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	var (
		der   []byte
		pkcs1 bool
	)

	if block, _ := pem.Decode(data); block != nil {
		switch block.Type {
		case "PUBLIC KEY":
		case "RSA PUBLIC KEY":
			pkcs1 = true
		default:
			return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
		}

		der = block.Bytes
	} else {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("public key is neither PEM nor base64 DER: %w", err)
		}

		der = decoded
	}

	var (
		key *rsa.PublicKey
		err error
	)

	if pkcs1 {
		key, err = x509.ParsePKCS1PublicKey(der)
	} else {
		key, err = parsePKIXRSA(der)
	}

	if err != nil {
		return nil, err
	}

	if key.N.BitLen() < minimumKeyBits {
		return nil, fmt.Errorf("public key is %d bits, need at least %d", key.N.BitLen(), minimumKeyBits)
	}

	return key, nil
}

func parsePKIXRSA(der []byte) (*rsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", errNotRSAKey, parsed)
	}

	return key, nil
}
