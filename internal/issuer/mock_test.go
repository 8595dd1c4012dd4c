package issuer

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/impactpool/milestone-cli/pkg/ledger"
)

// mockLedger is a hand-written testify mock of ledger.Client.
type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) CreateAccount(ctx context.Context) (*ledger.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *mockLedger) FundAccount(ctx context.Context, address string) (string, error) {
	args := m.Called(ctx, address)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) AttachMetadata(ctx context.Context, address string, entries []ledger.MetadataEntry) (string, error) {
	args := m.Called(ctx, address, entries)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) QueryTrustline(ctx context.Context, recipient, assetCode, issuer string) (bool, error) {
	args := m.Called(ctx, recipient, assetCode, issuer)
	return args.Bool(0), args.Error(1)
}

func (m *mockLedger) TransferMinimalUnit(ctx context.Context, issuer, recipient, assetCode string) (string, error) {
	args := m.Called(ctx, issuer, recipient, assetCode)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) RevokeSigningAuthority(ctx context.Context, address string) (string, error) {
	args := m.Called(ctx, address)
	return args.String(0), args.Error(1)
}
