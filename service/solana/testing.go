package solana

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// NewTestTransaction builds an unsigned transfer transaction paid by payer and
// returns it together with its base64 wire encoding, the same shape the trade
// service hands back. Intended for tests in this and dependent packages.
func NewTestTransaction(payer solana.PublicKey, lamports uint64) (*solana.Transaction, string, error) {
	recipient := solana.NewWallet().PublicKey()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, payer, recipient).Build(),
		},
		solana.Hash{1, 2, 3, 4},
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build test transaction: %w", err)
	}

	payload, err := EncodeTransaction(tx)
	if err != nil {
		return nil, "", err
	}
	return tx, payload, nil
}
