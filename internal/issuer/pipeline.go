// Package issuer runs the ledger-side sequence that turns a claimed
// achievement into a frozen, non-transferable certificate asset. Each
// step can fail independently; the pipeline makes as much forward
// progress as it can and reports exactly how far it got.
package issuer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/artifact"
	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/pkg/ledger"
)

// Ledger metadata values are limited to 64 bytes per entry.
const maxMetadataValueLen = 64

// Pipeline issues certificates against a ledger service. A fresh issuer
// account is created per certificate so freezing one can never affect
// another; retried claims start over with a new account.
type Pipeline struct {
	ledger   ledger.Client
	producer artifact.Producer
	nowFunc  func() time.Time
}

func NewPipeline(lc ledger.Client, producer artifact.Producer) *Pipeline {
	return &Pipeline{
		ledger:   lc,
		producer: producer,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
}

// Issue runs the issuance sequence for a claimed achievement. A certificate
// record is always returned describing how far the pipeline got. A non-nil
// error means the result does not qualify for minting: either funding failed
// (nothing was delivered) or the freeze failed (the non-transferability
// guarantee does not hold). Transfer and metadata failures are recorded on
// the certificate, not returned as errors.
func (p *Pipeline) Issue(ctx context.Context, a model.ClaimableAchievement) (model.IssuedCertificate, error) {
	now := p.nowFunc()
	cert := model.IssuedCertificate{
		Recipient: a.Recipient,
		IssuedAt:  now,
	}

	acct, err := p.ledger.CreateAccount(ctx)
	if err != nil {
		return cert, eris.Wrapf(err, "issuer: create account for %s", a.ID)
	}
	cert.Issuer = acct.Address

	art := p.producer.Produce(ctx, a)

	cert.AssetCode = AssetCode(a.Metadata.SubjectName(), now)

	fundRef, err := p.ledger.FundAccount(ctx, acct.Address)
	if err != nil {
		return cert, eris.Wrapf(err, "issuer: fund account %s", acct.Address)
	}
	cert.FundingTxRef = fundRef

	hasTrustline, err := p.ledger.QueryTrustline(ctx, a.Recipient, cert.AssetCode, acct.Address)
	if err != nil {
		// An unanswerable query is treated as no trustline; delivery can
		// be completed manually once the recipient establishes one.
		zap.L().Warn("trustline query failed, assuming absent",
			zap.String("achievement", a.ID),
			zap.String("recipient", a.Recipient),
			zap.Error(err))
		hasTrustline = false
	}

	p.attachMetadata(ctx, &cert, a, art, now)

	if hasTrustline {
		transferRef, err := p.ledger.TransferMinimalUnit(ctx, acct.Address, a.Recipient, cert.AssetCode)
		if err != nil {
			// The freeze must still run even when delivery fails, so the
			// transfer outcome is recorded rather than escalated.
			zap.L().Warn("certificate transfer failed",
				zap.String("achievement", a.ID),
				zap.String("asset_code", cert.AssetCode),
				zap.Error(err))
		} else {
			cert.TransferTxRef = transferRef
			cert.TransferSuccessful = true
		}
	} else {
		cert.RequiresManualClaim = true
	}

	lockRef, err := p.ledger.RevokeSigningAuthority(ctx, acct.Address)
	if err != nil {
		return cert, eris.Wrapf(err, "issuer: freeze account %s", acct.Address)
	}
	cert.LockTxRef = lockRef
	cert.IsNonTransferable = true

	return cert, nil
}

// attachMetadata writes the achievement's descriptive fields to the issuer
// account, batched under the per-transaction operation limit. Metadata is
// auxiliary, not proof of ownership, so failures are logged and skipped.
func (p *Pipeline) attachMetadata(ctx context.Context, cert *model.IssuedCertificate, a model.ClaimableAchievement, art artifact.Artifact, now time.Time) {
	entries := []ledger.MetadataEntry{
		{Key: "certificate_type", Value: "impact_milestone"},
		{Key: "category", Value: string(a.Category)},
		{Key: "threshold", Value: model.FormatAmount(a.Threshold)},
		{Key: "tier", Value: string(a.Tier)},
		{Key: "recipient", Value: a.Recipient},
		{Key: "issued_at", Value: now.Format(time.RFC3339)},
	}
	if a.Metadata.CharityName != "" {
		entries = append(entries, ledger.MetadataEntry{Key: "charity", Value: truncate(a.Metadata.CharityName)})
	}
	if art.Citation != "" {
		entries = append(entries, ledger.MetadataEntry{Key: "citation", Value: truncate(art.Citation)})
	}
	if len(art.Image) > 0 {
		sum := sha256.Sum256(art.Image)
		entries = append(entries, ledger.MetadataEntry{Key: "artifact_sha256", Value: hex.EncodeToString(sum[:])})
	}

	for start := 0; start < len(entries); start += ledger.MaxOperationsPerTx {
		end := start + ledger.MaxOperationsPerTx
		if end > len(entries) {
			end = len(entries)
		}
		ref, err := p.ledger.AttachMetadata(ctx, cert.Issuer, entries[start:end])
		if err != nil {
			zap.L().Warn("metadata attachment failed",
				zap.String("achievement", a.ID),
				zap.Int("batch_start", start),
				zap.Error(err))
			continue
		}
		cert.MetadataTxRefs = append(cert.MetadataTxRefs, ref)
	}
}

func truncate(s string) string {
	if len(s) <= maxMetadataValueLen {
		return s
	}
	return s[:maxMetadataValueLen]
}
