// Package registry tracks claimable achievements from detection through
// certificate issuance. It is the only component that moves records
// between states; the issuance pipeline reports outcomes and the
// registry decides what they mean for the stored record.
package registry

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/store"
)

var (
	// ErrNotFound is returned when no achievement exists for the given id.
	ErrNotFound = eris.New("achievement not found")

	// ErrAlreadyFinalized is returned when claiming an achievement that
	// has already been minted. Minted is terminal; failed claims may be
	// retried but a successful mint can never be repeated.
	ErrAlreadyFinalized = eris.New("achievement already finalized")
)

// Issuer runs the certificate issuance pipeline for a claimed achievement.
// The certificate reports partial outcomes as fields; a non-nil error means
// the result is not eligible to be recorded as minted.
type Issuer interface {
	Issue(ctx context.Context, a model.ClaimableAchievement) (model.IssuedCertificate, error)
}

// Registry coordinates achievement registration, claims, and milestone
// high-water marks on top of a Store.
type Registry struct {
	store  store.Store
	issuer Issuer
	locks  *keyLock
}

func New(st store.Store, issuer Issuer) *Registry {
	return &Registry{
		store:  st,
		issuer: issuer,
		locks:  newKeyLock(),
	}
}

// RegisterIfAbsent records a newly detected achievement. If a record with
// the same id already exists the existing record is returned untouched, so
// re-processing a contribution report never resets claim progress.
func (r *Registry) RegisterIfAbsent(ctx context.Context, a model.ClaimableAchievement) (bool, *model.ClaimableAchievement, error) {
	if a.State == "" {
		a.State = model.StateClaimable
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	created, rec, err := r.store.InsertAchievementIfAbsent(ctx, a)
	if err != nil {
		return false, nil, eris.Wrapf(err, "registry: register %s", a.ID)
	}
	if created {
		zap.L().Info("achievement registered",
			zap.String("id", a.ID),
			zap.String("tier", string(a.Tier)),
			zap.Float64("threshold", a.Threshold))
	}
	return created, rec, nil
}

// Get returns the achievement with the given id or ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*model.ClaimableAchievement, error) {
	rec, err := r.store.GetAchievement(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: get %s", id)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// List returns achievements matching the filter.
func (r *Registry) List(ctx context.Context, f store.AchievementFilter) ([]model.ClaimableAchievement, error) {
	return r.store.ListAchievements(ctx, f)
}

// ListClaimable returns the recipient's achievements in Claimable state.
// Claimed, Minted, and Failed records are excluded; failed claims are
// retried by id via Claim, not rediscovered here.
func (r *Registry) ListClaimable(ctx context.Context, recipient string) ([]model.ClaimableAchievement, error) {
	claimable, err := r.store.ListAchievements(ctx, store.AchievementFilter{
		Recipient: recipient,
		State:     model.StateClaimable,
	})
	if err != nil {
		return nil, eris.Wrap(err, "registry: list claimable")
	}
	return claimable, nil
}

// Claim runs the issuance pipeline for the achievement with the given id.
// The returned record always reflects the stored outcome: Minted when the
// pipeline met the minting requirements, Failed otherwise with the failure
// detail and any partial certificate attached. Claiming a minted
// achievement returns ErrAlreadyFinalized; claiming a failed one retries.
func (r *Registry) Claim(ctx context.Context, id string) (*model.ClaimableAchievement, error) {
	// Once a claim starts, the ledger sequence runs to completion. Caller
	// cancellation must not abandon it mid-flight and leave a funded,
	// unfrozen issuer account behind.
	ctx = context.WithoutCancel(ctx)

	unlock := r.locks.Lock("claim:" + id)
	defer unlock()

	rec, err := r.store.GetAchievement(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: claim %s", id)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.State == model.StateMinted {
		return rec, ErrAlreadyFinalized
	}

	now := time.Now().UTC()
	rec.State = model.StateClaimed
	rec.ClaimedAt = &now
	rec.FailureDetail = ""
	if err := r.store.UpdateAchievement(ctx, *rec); err != nil {
		return nil, eris.Wrapf(err, "registry: mark claimed %s", id)
	}

	cert, issueErr := r.issuer.Issue(ctx, *rec)
	rec.Certificate = &cert

	if issueErr != nil {
		rec.State = model.StateFailed
		rec.FailureDetail = issueErr.Error()
		zap.L().Warn("certificate issuance failed",
			zap.String("id", id),
			zap.Error(issueErr))
	} else {
		mintedAt := time.Now().UTC()
		rec.State = model.StateMinted
		rec.MintedAt = &mintedAt
		zap.L().Info("certificate minted",
			zap.String("id", id),
			zap.String("asset_code", cert.AssetCode),
			zap.Bool("transfer_successful", cert.TransferSuccessful),
			zap.Bool("requires_manual_claim", cert.RequiresManualClaim))
	}

	if err := r.store.UpdateAchievement(ctx, *rec); err != nil {
		return nil, eris.Wrapf(err, "registry: record claim outcome %s", id)
	}
	return rec, nil
}

// HighWaterMark returns the highest total ever processed for the subject.
// Subjects never seen before report zero.
func (r *Registry) HighWaterMark(ctx context.Context, subject string, category model.Category) (float64, error) {
	st, err := r.store.GetMilestoneState(ctx, subject, category)
	if err != nil {
		return 0, eris.Wrapf(err, "registry: high-water mark %s/%s", subject, category)
	}
	if st == nil {
		return 0, nil
	}
	return st.HighWaterMark, nil
}

// AdvanceHighWaterMark raises the subject's high-water mark to newTotal.
// Totals at or below the current mark are ignored so totals arriving out
// of order never re-trigger milestones.
func (r *Registry) AdvanceHighWaterMark(ctx context.Context, subject string, category model.Category, newTotal float64) error {
	unlock := r.locks.Lock("milestone:" + string(category) + ":" + subject)
	defer unlock()

	st, err := r.store.GetMilestoneState(ctx, subject, category)
	if err != nil {
		return eris.Wrapf(err, "registry: advance %s/%s", subject, category)
	}
	if st != nil && newTotal <= st.HighWaterMark {
		return nil
	}

	return r.store.PutMilestoneState(ctx, model.MilestoneState{
		Subject:       subject,
		Category:      category,
		HighWaterMark: newTotal,
		LastUpdated:   time.Now().UTC(),
	})
}
