package model

import (
	"fmt"
	"strconv"
	"time"
)

// Category identifies which threshold ladder an achievement belongs to.
type Category string

const (
	CategoryPool       Category = "pool"
	CategoryIndividual Category = "individual"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryPool || c == CategoryIndividual
}

// Tier is the discrete award level for a crossed threshold.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// AchievementState is the lifecycle state of a claimable achievement.
type AchievementState string

const (
	// StateClaimable means the milestone was registered and is awaiting a claim.
	StateClaimable AchievementState = "claimable"
	// StateClaimed means a claim is in flight: the issuance pipeline is running.
	StateClaimed AchievementState = "claimed"
	// StateMinted means the certificate landed on the ledger. Terminal.
	StateMinted AchievementState = "minted"
	// StateFailed means the last issuance attempt did not complete. The
	// achievement may be claimed again.
	StateFailed AchievementState = "failed"
)

// AchievementMetadata carries the descriptive fields attached to a
// certificate. Category-specific context is expressed as named optional
// fields rather than an open map so downstream consumers stay checkable.
type AchievementMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Pool context.
	PoolName    string `json:"pool_name,omitempty"`
	CharityName string `json:"charity_name,omitempty"`

	// Individual context.
	ContributorAlias string `json:"contributor_alias,omitempty"`
}

// SubjectName returns the display name driving asset-code derivation.
func (m AchievementMetadata) SubjectName() string {
	if m.PoolName != "" {
		return m.PoolName
	}
	if m.ContributorAlias != "" {
		return m.ContributorAlias
	}
	return m.Name
}

// ClaimableAchievement is a registered milestone award. Records are owned
// exclusively by the registry; other components receive copies.
type ClaimableAchievement struct {
	ID            string              `json:"id"`
	Category      Category            `json:"category"`
	Subject       string              `json:"subject"`
	Recipient     string              `json:"recipient"`
	Threshold     float64             `json:"threshold"`
	Tier          Tier                `json:"tier"`
	Metadata      AchievementMetadata `json:"metadata"`
	State         AchievementState    `json:"state"`
	CreatedAt     time.Time           `json:"created_at"`
	ClaimedAt     *time.Time          `json:"claimed_at,omitempty"`
	MintedAt      *time.Time          `json:"minted_at,omitempty"`
	FailureDetail string              `json:"failure_detail,omitempty"`
	Certificate   *IssuedCertificate  `json:"certificate,omitempty"`
}

// AchievementID builds the deterministic composite key for a milestone.
// Identical inputs always produce the same id, which is what makes repeated
// evaluation of the same total a registry no-op.
func AchievementID(category Category, subject string, threshold float64) string {
	return fmt.Sprintf("%s:%s:%s", category, subject, FormatAmount(threshold))
}

// FormatAmount renders a threshold amount without trailing zeros, so ids and
// ledger metadata stay stable across float formatting quirks.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// MilestoneState tracks the highest threshold already awarded for one
// subject within one category. HighWaterMark only ever increases.
type MilestoneState struct {
	Subject       string    `json:"subject"`
	Category      Category  `json:"category"`
	HighWaterMark float64   `json:"high_water_mark"`
	LastUpdated   time.Time `json:"last_updated"`
}

// IssuedCertificate summarizes how far the issuance pipeline got. It is
// always produced, even on failure, so callers can present the exact partial
// outcome instead of a generic error.
type IssuedCertificate struct {
	AssetCode string `json:"asset_code"`
	Issuer    string `json:"issuer"`
	Recipient string `json:"recipient"`

	FundingTxRef   string   `json:"funding_tx_ref,omitempty"`
	MetadataTxRefs []string `json:"metadata_tx_refs,omitempty"`
	TransferTxRef  string   `json:"transfer_tx_ref,omitempty"`
	LockTxRef      string   `json:"lock_tx_ref,omitempty"`

	// TransferSuccessful is true only if the minimal-unit payment landed.
	TransferSuccessful bool `json:"transfer_successful"`
	// IsNonTransferable is true only if the issuer's signing authority was
	// revoked, fixing the asset supply forever.
	IsNonTransferable bool `json:"is_non_transferable"`
	// RequiresManualClaim is true when no recipient trustline existed, so
	// delivery was skipped and the recipient must establish one later.
	RequiresManualClaim bool `json:"requires_manual_claim"`

	IssuedAt time.Time `json:"issued_at"`
}
