package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "becoming/pkg/domain-errors"
)

const aliceHex = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

func TestParseAccountID(t *testing.T) {
	t.Run("accepts prefixed and bare hex", func(t *testing.T) {
		a, err := ParseAccountID(aliceHex)
		require.NoError(t, err)
		b, err := ParseAccountID(strings.TrimPrefix(aliceHex, "0x"))
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Equal(t, aliceHex, a.String())
	})

	t.Run("accepts uppercase hex and normalizes output", func(t *testing.T) {
		a, err := ParseAccountID("0x" + strings.ToUpper(strings.TrimPrefix(aliceHex, "0x")))
		require.NoError(t, err)
		assert.Equal(t, aliceHex, a.String())
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, in := range []string{"", "  ", "0x1234", aliceHex + "00", "0x" + strings.Repeat("zz", 32)} {
			_, err := ParseAccountID(in)
			require.Error(t, err, in)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), in)
		}
	})

	t.Run("zero address is a valid identity", func(t *testing.T) {
		a, err := ParseAccountID("0x" + strings.Repeat("00", 32))
		require.NoError(t, err)
		assert.True(t, a.IsZero())
	})
}

func TestAccountIDText(t *testing.T) {
	a := MustParseAccountID(aliceHex)
	raw, err := json.Marshal(map[string]AccountID{"owner": a})
	require.NoError(t, err)
	assert.JSONEq(t, `{"owner":"`+aliceHex+`"}`, string(raw))

	var decoded map[string]AccountID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, a, decoded["owner"])

	assert.Equal(t, "0xd435…a27d", a.Short())
}

func TestDevAccounts(t *testing.T) {
	seen := make(map[AccountID]string)
	for _, name := range DevAccountNames {
		a := DevAccount(name)
		assert.False(t, a.IsZero())
		if prev, ok := seen[a]; ok {
			t.Fatalf("dev accounts %s and %s collide", prev, name)
		}
		seen[a] = name
	}
	assert.Equal(t, DevAccount("alice"), DevAccount(" Alice "))

	resolved, err := ResolveAccount("bob")
	require.NoError(t, err)
	assert.Equal(t, DevAccount("bob"), resolved)

	resolved, err = ResolveAccount(aliceHex)
	require.NoError(t, err)
	assert.Equal(t, MustParseAccountID(aliceHex), resolved)
}

func TestBalanceArithmetic(t *testing.T) {
	sum, ok := Balance(1_000_000).Add(50)
	require.True(t, ok)
	assert.Equal(t, Balance(1_000_050), sum)

	_, ok = Balance(^uint64(0)).Add(1)
	assert.False(t, ok)

	_, ok = Balance(10).Sub(11)
	assert.False(t, ok)
}
