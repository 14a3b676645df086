package fees

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// SaleInput is the immutable slice of a sale the calculator needs.
type SaleInput struct {
	GrossCents      int64
	SellerUserID    uuid.UUID
	AffiliateUserID *uuid.UUID
	PlatformUserID  uuid.UUID
	Snapshot        Snapshot
}

// RoleCommission is one payee's computed share.
type RoleCommission struct {
	Role        enums.CommissionRole
	UserID      uuid.UUID
	Percentage  decimal.Decimal
	AmountCents int64
}

// Result is the full split of a sale. Conservation holds exactly:
// sum of role amounts plus the gateway fee equals the gross amount.
type Result struct {
	PerRole          []RoleCommission
	PlatformFeeCents int64
	GatewayFeeCents  int64
	NetAmountCents   int64
}

// CalculateCommissions splits a sale's gross amount across payees using only
// the frozen snapshot, so the same input always produces the same result.
// Each share is rounded half up to the cent; the rounding residual lands on
// the platform role so totals reconcile to the cent.
func CalculateCommissions(input SaleInput) (Result, error) {
	if input.GrossCents <= 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "gross amount must be positive")
	}
	if input.SellerUserID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "seller user id is required")
	}
	if input.PlatformUserID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "platform user id is required")
	}
	snap := input.Snapshot
	if snap.AffiliatePercent.IsPositive() && input.AffiliateUserID == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "affiliate percent set without affiliate user")
	}

	coTotal := decimal.Zero
	for _, co := range snap.CoProducers {
		if co.UserID == uuid.Nil {
			return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "co-producer user id is required")
		}
		if co.Percent.IsNegative() {
			return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "co-producer percent must not be negative")
		}
		coTotal = coTotal.Add(co.Percent)
	}
	if coTotal.GreaterThan(hundred) {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("co-producer splits sum to %s%%", coTotal))
	}

	gross := decimal.NewFromInt(input.GrossCents)

	gatewayFee := roundHalfUp(gross.Mul(snap.GatewayPercent).Div(hundred)) + snap.GatewayFixedCents
	if gatewayFee > input.GrossCents {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "gateway fee exceeds gross amount")
	}

	platformFee := roundHalfUp(gross.Mul(snap.PlatformPercent).Div(hundred))
	if snap.PlatformMinCents > 0 && platformFee < snap.PlatformMinCents {
		platformFee = snap.PlatformMinCents
	}
	if snap.PlatformMaxCents > 0 && platformFee > snap.PlatformMaxCents {
		platformFee = snap.PlatformMaxCents
	}

	affiliateAmount := int64(0)
	if snap.AffiliatePercent.IsPositive() {
		affiliateAmount = roundHalfUp(gross.Mul(snap.AffiliatePercent).Div(hundred))
	}

	coBase := decimal.NewFromInt(input.GrossCents - platformFee)
	coAmounts := make([]int64, len(snap.CoProducers))
	coSum := int64(0)
	for i, co := range snap.CoProducers {
		coAmounts[i] = roundHalfUp(coBase.Mul(co.Percent).Div(hundred))
		coSum += coAmounts[i]
	}

	producerAmount := input.GrossCents - gatewayFee - platformFee - affiliateAmount - coSum
	if producerAmount < 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "splits exceed distributable amount")
	}

	// Residual from rounding is zero by construction here (the producer share
	// is the exact remainder), but guard the invariant anyway: anything left
	// over belongs to the platform.
	platformAmount := platformFee
	residual := input.GrossCents - gatewayFee - platformAmount - affiliateAmount - coSum - producerAmount
	platformAmount += residual

	producerPercent := hundred.
		Sub(snap.PlatformPercent).
		Sub(snap.AffiliatePercent).
		Sub(coTotal)

	perRole := []RoleCommission{
		{
			Role:        enums.CommissionRoleProducer,
			UserID:      input.SellerUserID,
			Percentage:  producerPercent,
			AmountCents: producerAmount,
		},
	}
	if affiliateAmount > 0 {
		perRole = append(perRole, RoleCommission{
			Role:        enums.CommissionRoleAffiliate,
			UserID:      *input.AffiliateUserID,
			Percentage:  snap.AffiliatePercent,
			AmountCents: affiliateAmount,
		})
	}
	for i, co := range snap.CoProducers {
		if coAmounts[i] == 0 {
			continue
		}
		perRole = append(perRole, RoleCommission{
			Role:        enums.CommissionRoleCoProducer,
			UserID:      co.UserID,
			Percentage:  co.Percent,
			AmountCents: coAmounts[i],
		})
	}
	perRole = append(perRole, RoleCommission{
		Role:        enums.CommissionRolePlatform,
		UserID:      input.PlatformUserID,
		Percentage:  snap.PlatformPercent,
		AmountCents: platformAmount,
	})

	return Result{
		PerRole:          perRole,
		PlatformFeeCents: platformAmount,
		GatewayFeeCents:  gatewayFee,
		NetAmountCents:   input.GrossCents - gatewayFee - platformAmount,
	}, nil
}

// roundHalfUp rounds a decimal cent amount to the nearest integer cent,
// with ties moving away from zero.
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
