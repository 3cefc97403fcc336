package solana

import (
	"encoding/base64"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTransaction_RoundTripsTradePayload(t *testing.T) {
	wallet := solana.NewWallet()
	_, payload, err := NewTestTransaction(wallet.PublicKey(), 2_500_000_000)
	require.NoError(t, err)

	tx, err := DecodeTransaction(payload)
	require.NoError(t, err)

	require.NoError(t, RequireSigner(tx, wallet.PublicKey()))
	assert.False(t, IsSignedBy(tx, wallet.PublicKey()))
}

func TestDecodeTransaction_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not base64", "%%%not-base64%%%"},
		{"garbage bytes", base64.StdEncoding.EncodeToString([]byte{0x01, 0x02})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := DecodeTransaction(tt.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPayload)
			assert.Nil(t, tx)
		})
	}
}

func TestRequireSigner_OtherWallet(t *testing.T) {
	payer := solana.NewWallet()
	other := solana.NewWallet()

	tx, _, err := NewTestTransaction(payer.PublicKey(), 1)
	require.NoError(t, err)

	err = RequireSigner(tx, other.PublicKey())
	assert.ErrorIs(t, err, ErrSignerMissing)
}

func TestSignWith(t *testing.T) {
	wallet := solana.NewWallet()
	tx, _, err := NewTestTransaction(wallet.PublicKey(), 1_000)
	require.NoError(t, err)

	sig, err := SignWith(tx, wallet.PrivateKey)
	require.NoError(t, err)

	require.Len(t, tx.Signatures, 1)
	assert.Equal(t, sig, tx.Signatures[0])
	assert.True(t, IsSignedBy(tx, wallet.PublicKey()))

	message, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, sig.Verify(wallet.PublicKey(), message))

	// The signed transaction still serializes and decodes with the signature intact.
	payload, err := EncodeTransaction(tx)
	require.NoError(t, err)
	decoded, err := DecodeTransaction(payload)
	require.NoError(t, err)
	assert.Equal(t, sig, decoded.Signatures[0])
}

func TestSignWith_NotASigner(t *testing.T) {
	payer := solana.NewWallet()
	other := solana.NewWallet()
	tx, _, err := NewTestTransaction(payer.PublicKey(), 1)
	require.NoError(t, err)

	_, err = SignWith(tx, other.PrivateKey)
	assert.ErrorIs(t, err, ErrSignerMissing)
}

func TestInspect(t *testing.T) {
	wallet := solana.NewWallet()
	tx, _, err := NewTestTransaction(wallet.PublicKey(), 42_000)
	require.NoError(t, err)

	summary := Inspect(tx)
	assert.Equal(t, wallet.PublicKey(), summary.FeePayer)
	assert.Equal(t, []solana.PublicKey{wallet.PublicKey()}, summary.Signers)
	assert.Equal(t, []solana.PublicKey{SystemProgramID}, summary.Programs)
	assert.Equal(t, 1, summary.InstructionCount)
	assert.Equal(t, uint64(42_000), summary.LamportsOut)
	assert.False(t, summary.Versioned)
}

func TestSystemTransfer(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	keys := []solana.PublicKey{from, to, SystemProgramID}

	data := make([]byte, 12)
	data[0] = 2
	data[4] = 0x10 // 16 lamports

	lamports, source, ok := systemTransfer(solana.CompiledInstruction{ProgramIDIndex: 2, Accounts: []uint16{0, 1}, Data: data}, keys)
	require.True(t, ok)
	assert.Equal(t, uint64(16), lamports)
	assert.Equal(t, from, source)

	tests := []struct {
		name        string
		instruction solana.CompiledInstruction
	}{
		{"short data", solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: data[:8]}},
		{"not a transfer", solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: append([]byte{3}, data[1:]...)}},
		{"no accounts", solana.CompiledInstruction{Data: data}},
		{"account out of range", solana.CompiledInstruction{Accounts: []uint16{9}, Data: data}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := systemTransfer(tt.instruction, keys)
			assert.False(t, ok)
		})
	}
}
