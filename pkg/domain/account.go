package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	dErrors "becoming/pkg/domain-errors"
)

// AccountIDLen is the byte length of an account identity.
const AccountIDLen = 32

// AccountID is the 32-byte identity the execution host authenticates per call.
// The zero value is a valid identity (the host's "zero address"); optional
// identities are represented with a pointer or an explicit flag, never by
// treating zero as absent.
type AccountID [AccountIDLen]byte

// ParseAccountID parses a hex identity with an optional 0x prefix.
//
// Usage: call at trust boundaries (handlers, config, CLI). Direct conversion
// from bytes skips validation of the encoded form.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AccountID{}, dErrors.New(dErrors.CodeInvalidInput, "account id cannot be empty")
	}
	raw, _ := strings.CutPrefix(s, "0x")
	if len(raw) != AccountIDLen*2 {
		return AccountID{}, dErrors.New(dErrors.CodeInvalidInput, "account id must be 32 hex-encoded bytes")
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return AccountID{}, dErrors.New(dErrors.CodeInvalidInput, "account id must be hex encoded")
	}
	var a AccountID
	copy(a[:], b)
	return a, nil
}

// MustParseAccountID is ParseAccountID for literals; it panics on bad input.
func MustParseAccountID(s string) AccountID {
	a, err := ParseAccountID(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the 0x-prefixed lowercase hex form.
func (a AccountID) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Short abbreviates the identity for logs and display, e.g. 0xd435…a27d.
func (a AccountID) Short() string {
	full := hex.EncodeToString(a[:])
	return "0x" + full[:4] + "…" + full[len(full)-4:]
}

// IsZero reports whether a is the zero address.
func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// DeriveAccountID derives a deterministic identity from a seed phrase using
// BLAKE2b-256, the hash the host uses for account derivation.
func DeriveAccountID(seed string) AccountID {
	return AccountID(blake2b.Sum256([]byte(seed)))
}

// DevAccountNames lists the named development accounts, in host order.
var DevAccountNames = []string{"alice", "bob", "charlie", "django", "eve", "frank"}

// DevAccount returns the development identity for a well-known name.
// Names are case-insensitive.
func DevAccount(name string) AccountID {
	return DeriveAccountID("//" + strings.ToLower(strings.TrimSpace(name)))
}

// ResolveAccount accepts either a hex identity or a development account name.
func ResolveAccount(s string) (AccountID, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, dev := range DevAccountNames {
		if name == dev {
			return DevAccount(name), nil
		}
	}
	return ParseAccountID(s)
}
