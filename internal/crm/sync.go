// Package crm mirrors minted certificates into Salesforce so donor-facing
// teams see milestone activity without touching the ledger. Sync is
// best-effort: a CRM outage never affects issuance outcomes.
package crm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/pkg/salesforce"
)

const certificateObject = "Impact_Certificate__c"

// Syncer records minted certificates in Salesforce.
type Syncer struct {
	client salesforce.Client
}

func NewSyncer(client salesforce.Client) *Syncer {
	return &Syncer{client: client}
}

// RecordMint inserts a certificate record for a freshly minted achievement.
// Returns the Salesforce record id, or an empty string when the sync was
// skipped or failed; callers should not treat failure as an error.
func (s *Syncer) RecordMint(ctx context.Context, a model.ClaimableAchievement) string {
	if s == nil || s.client == nil || a.Certificate == nil {
		return ""
	}

	cert := a.Certificate
	record := map[string]any{
		"Achievement_Id__c":        a.ID,
		"Category__c":              string(a.Category),
		"Tier__c":                  string(a.Tier),
		"Threshold__c":             a.Threshold,
		"Recipient__c":             a.Recipient,
		"Asset_Code__c":            cert.AssetCode,
		"Issuer_Address__c":        cert.Issuer,
		"Transfer_Successful__c":   cert.TransferSuccessful,
		"Requires_Manual_Claim__c": cert.RequiresManualClaim,
		"Issued_At__c":             cert.IssuedAt.Format(time.RFC3339),
	}
	if a.Metadata.CharityName != "" {
		record["Charity__c"] = a.Metadata.CharityName
	}

	id, err := s.client.InsertOne(ctx, certificateObject, record)
	if err != nil {
		zap.L().Warn("crm sync failed",
			zap.String("achievement", a.ID),
			zap.Error(err))
		return ""
	}

	zap.L().Info("certificate synced to crm",
		zap.String("achievement", a.ID),
		zap.String("crm_id", id))
	return id
}
