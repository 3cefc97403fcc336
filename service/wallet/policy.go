package wallet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/soltrade/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// SigningPolicy limits what a keypair wallet signs on its own. The zero value
// allows everything.
type SigningPolicy struct {
	// MaxLamports caps native SOL sent from the wallet by one transaction. Zero means no cap.
	MaxLamports uint64
	// AllowedPrograms, when non-empty, is the full set of programs a transaction may invoke.
	AllowedPrograms []solanago.PublicKey
}

// NewSigningPolicy builds a policy from configured values.
func NewSigningPolicy(maxLamports uint64, programs []string) (SigningPolicy, error) {
	policy := SigningPolicy{MaxLamports: maxLamports}
	for _, p := range programs {
		id, err := solanago.PublicKeyFromBase58(p)
		if err != nil {
			return SigningPolicy{}, fmt.Errorf("invalid program id %q: %w", p, err)
		}
		policy.AllowedPrograms = append(policy.AllowedPrograms, id)
	}
	return policy, nil
}

// Unrestricted reports whether the policy allows every transaction.
func (p SigningPolicy) Unrestricted() bool {
	return p.MaxLamports == 0 && len(p.AllowedPrograms) == 0
}

// Check returns why summary violates the policy, or nil.
func (p SigningPolicy) Check(summary solana.Summary) error {
	if p.MaxLamports > 0 && summary.LamportsOut > p.MaxLamports {
		return fmt.Errorf("transfers %d lamports, limit is %d", summary.LamportsOut, p.MaxLamports)
	}
	if len(p.AllowedPrograms) == 0 {
		return nil
	}
	for _, program := range summary.Programs {
		if !p.allows(program) {
			return fmt.Errorf("invokes program %s, which is not allowed", program)
		}
	}
	return nil
}

func (p SigningPolicy) allows(program solanago.PublicKey) bool {
	for _, id := range p.AllowedPrograms {
		if id.Equals(program) {
			return true
		}
	}
	return false
}

// Approver turns the policy into a keypair Approver that logs each refusal.
// An unrestricted policy yields nil, which signs everything.
func (p SigningPolicy) Approver(logger *slog.Logger) Approver {
	if p.Unrestricted() {
		return nil
	}
	return func(ctx context.Context, summary solana.Summary) bool {
		if err := p.Check(summary); err != nil {
			logger.WarnContext(ctx, "signing policy refused transaction",
				"fee_payer", summary.FeePayer.String(),
				"reason", err.Error(),
			)
			return false
		}
		return true
	}
}
