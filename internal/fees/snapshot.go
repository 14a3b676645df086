package fees

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/centpay/centpay-backend/pkg/config"
	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
)

// SnapshotSchemaVersion identifies the calculation_details layout. Bump when
// the snapshot shape changes so audits can decode historical rows.
const SnapshotSchemaVersion = 1

// Snapshot freezes every fee input used for a sale. It is persisted on the
// financial transaction at checkout, so the calculator never reads live
// configuration when a sale is settled or re-derived.
type Snapshot struct {
	SchemaVersion     int                 `json:"schema_version"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method"`
	SettlementDays    int                 `json:"settlement_days"`
	PlatformPercent   decimal.Decimal     `json:"platform_percent"`
	PlatformMinCents  int64               `json:"platform_min_cents"`
	PlatformMaxCents  int64               `json:"platform_max_cents"`
	GatewayPercent    decimal.Decimal     `json:"gateway_percent"`
	GatewayFixedCents int64               `json:"gateway_fixed_cents"`
	AffiliatePercent  decimal.Decimal     `json:"affiliate_percent"`
	CoProducers       []CoProducerSplit   `json:"co_producers,omitempty"`
}

// CoProducerSplit is one co-producer's share of the post-platform-fee amount.
type CoProducerSplit struct {
	UserID  uuid.UUID       `json:"user_id"`
	Percent decimal.Decimal `json:"percent"`
}

// BuildSnapshot resolves the configured fee schedule for one sale. The
// affiliate percentage comes from the affiliation record; co-producer splits
// from the product's contracts.
func BuildSnapshot(
	cfg config.FeesConfig,
	settlement config.SettlementConfig,
	method enums.PaymentMethod,
	affiliatePercent decimal.Decimal,
	coProducers []CoProducerSplit,
) (Snapshot, error) {
	if !method.IsValid() {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}

	platformPercent, err := decimal.NewFromString(cfg.PlatformPercent)
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "platform percent misconfigured")
	}

	snap := Snapshot{
		SchemaVersion:    SnapshotSchemaVersion,
		PaymentMethod:    method,
		PlatformPercent:  platformPercent,
		PlatformMinCents: cfg.PlatformMinCents,
		PlatformMaxCents: cfg.PlatformMaxCents,
		AffiliatePercent: affiliatePercent,
		CoProducers:      coProducers,
	}

	switch method {
	case enums.PaymentMethodPix:
		snap.GatewayPercent, err = decimal.NewFromString(cfg.PixPercent)
		snap.GatewayFixedCents = cfg.PixFixedCents
		snap.SettlementDays = settlement.PixHoldDays
	case enums.PaymentMethodBoleto:
		snap.GatewayPercent = decimal.Zero
		snap.GatewayFixedCents = cfg.BoletoFixedCents
		snap.SettlementDays = settlement.HoldDays
	case enums.PaymentMethodCreditCard:
		snap.SettlementDays = settlement.CardSettlementDays
		snap.GatewayFixedCents = cfg.CardFixedCents
		snap.GatewayPercent, err = decimal.NewFromString(cardPercentForTier(cfg, settlement.CardSettlementDays))
	}
	if err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "gateway percent misconfigured")
	}
	return snap, nil
}

// cardPercentForTier picks the credit card rate by settlement delay tier.
func cardPercentForTier(cfg config.FeesConfig, days int) string {
	switch {
	case days <= 2:
		return cfg.CardPercentD2
	case days <= 15:
		return cfg.CardPercentD15
	default:
		return cfg.CardPercentD30
	}
}

// Marshal serializes the snapshot for the calculation_details column.
func (s Snapshot) Marshal() (json.RawMessage, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal fee snapshot")
	}
	return raw, nil
}

// DecodeSnapshot restores a snapshot from a calculation_details column.
func DecodeSnapshot(raw json.RawMessage) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode fee snapshot")
	}
	if snap.SchemaVersion != SnapshotSchemaVersion {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported snapshot schema version %d", snap.SchemaVersion))
	}
	return snap, nil
}
