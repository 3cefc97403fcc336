package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRandomEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		endpoints []string
		wantErr   bool
	}{
		{name: "single endpoint", endpoints: []string{"https://api.mainnet-beta.solana.com"}},
		{name: "several endpoints", endpoints: []string{"https://api.devnet.solana.com", "https://devnet.helius-rpc.com"}},
		{name: "none configured", endpoints: nil, wantErr: true},
		{name: "empty list", endpoints: []string{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectRandomEndpoint(tt.endpoints)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "no RPC endpoints")
				return
			}
			require.NoError(t, err)
			assert.Contains(t, tt.endpoints, got)
		})
	}
}

func TestSelectRandomEndpoint_Spreads(t *testing.T) {
	endpoints := []string{"https://a.example", "https://b.example", "https://c.example", "https://d.example"}

	seen := map[string]int{}
	for i := 0; i < 64; i++ {
		got, err := SelectRandomEndpoint(endpoints)
		require.NoError(t, err)
		seen[got]++
	}
	assert.GreaterOrEqual(t, len(seen), 2)
}
