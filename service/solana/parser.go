package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.SystemProgramID

	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// Token2022ProgramID is the Token Extensions program (Token-2022)
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// System Program instruction types
const (
	SystemProgramTransferInstruction = uint32(2)
)

// DecodeTransaction decodes a base64 wire-format transaction, legacy or versioned.
func DecodeTransaction(payload string) (*solana.Transaction, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64: %v", ErrInvalidPayload, err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if len(tx.Message.AccountKeys) == 0 || tx.Message.Header.NumRequiredSignatures == 0 {
		return nil, fmt.Errorf("%w: transaction has no signers", ErrInvalidPayload)
	}

	return tx, nil
}

// EncodeTransaction serializes a transaction to base64 wire format.
// Missing signature slots are filled with zero signatures so a partially
// signed transaction can still be handed to a wallet.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	ensureSignatureSlots(tx)
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// RequireSigner returns ErrSignerMissing unless wallet is one of the
// transaction's required signers.
func RequireSigner(tx *solana.Transaction, wallet solana.PublicKey) error {
	if signerIndex(tx, wallet) < 0 {
		return fmt.Errorf("%w: %s", ErrSignerMissing, wallet)
	}
	return nil
}

// SignWith signs the transaction message with key and places the signature
// in the key's signer slot. Other signer slots are left untouched.
func SignWith(tx *solana.Transaction, key solana.PrivateKey) (solana.Signature, error) {
	idx := signerIndex(tx, key.PublicKey())
	if idx < 0 {
		return solana.Signature{}, fmt.Errorf("%w: %s", ErrSignerMissing, key.PublicKey())
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to serialize message: %w", err)
	}

	sig, err := key.Sign(message)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign message: %w", err)
	}

	ensureSignatureSlots(tx)
	tx.Signatures[idx] = sig
	return sig, nil
}

// IsSignedBy reports whether the wallet's signer slot holds a non-zero signature.
func IsSignedBy(tx *solana.Transaction, wallet solana.PublicKey) bool {
	idx := signerIndex(tx, wallet)
	if idx < 0 || idx >= len(tx.Signatures) {
		return false
	}
	return tx.Signatures[idx] != (solana.Signature{})
}

// Inspect summarizes a decoded transaction for logging and pre-sign checks.
func Inspect(tx *solana.Transaction) Summary {
	msg := tx.Message
	keys := msg.AccountKeys

	summary := Summary{
		RecentBlockhash:  msg.RecentBlockhash,
		Versioned:        msg.IsVersioned(),
		InstructionCount: len(msg.Instructions),
	}

	numSigners := int(msg.Header.NumRequiredSignatures)
	for i := 0; i < numSigners && i < len(keys); i++ {
		summary.Signers = append(summary.Signers, keys[i])
	}
	if len(summary.Signers) > 0 {
		summary.FeePayer = summary.Signers[0]
	}

	seen := make(map[solana.PublicKey]struct{})
	for _, instruction := range msg.Instructions {
		if int(instruction.ProgramIDIndex) >= len(keys) {
			continue
		}
		programID := keys[instruction.ProgramIDIndex]
		if _, ok := seen[programID]; !ok {
			seen[programID] = struct{}{}
			summary.Programs = append(summary.Programs, programID)
		}

		if programID.Equals(SystemProgramID) {
			if lamports, from, ok := systemTransfer(instruction, keys); ok && from.Equals(summary.FeePayer) {
				summary.LamportsOut += lamports
			}
		}
	}

	return summary
}

// signerIndex returns the position of key among the required signers, or -1.
func signerIndex(tx *solana.Transaction, key solana.PublicKey) int {
	numSigners := int(tx.Message.Header.NumRequiredSignatures)
	for i, k := range tx.Message.AccountKeys {
		if i >= numSigners {
			break
		}
		if k.Equals(key) {
			return i
		}
	}
	return -1
}

// ensureSignatureSlots sizes the signature list to the number of required signers.
func ensureSignatureSlots(tx *solana.Transaction) {
	numSigners := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) >= numSigners {
		return
	}
	sigs := make([]solana.Signature, numSigners)
	copy(sigs, tx.Signatures)
	tx.Signatures = sigs
}

// systemTransfer decodes a System Program transfer: a little-endian u32
// instruction tag of 2 followed by the u64 lamport amount, with the source as
// the first account.
func systemTransfer(instruction solana.CompiledInstruction, keys []solana.PublicKey) (uint64, solana.PublicKey, bool) {
	data := instruction.Data
	if len(data) < 12 || binary.LittleEndian.Uint32(data[:4]) != SystemProgramTransferInstruction {
		return 0, solana.PublicKey{}, false
	}
	if len(instruction.Accounts) == 0 || int(instruction.Accounts[0]) >= len(keys) {
		return 0, solana.PublicKey{}, false
	}
	return binary.LittleEndian.Uint64(data[4:12]), keys[instruction.Accounts[0]], true
}
