package fees

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/centpay/centpay-backend/pkg/enums"
	pkgerrors "github.com/centpay/centpay-backend/pkg/errors"
)

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func baseSnapshot() Snapshot {
	return Snapshot{
		SchemaVersion:   SnapshotSchemaVersion,
		PaymentMethod:   enums.PaymentMethodPix,
		PlatformPercent: pct("10"),
	}
}

func amountByRole(t *testing.T, result Result, role enums.CommissionRole) int64 {
	t.Helper()
	total := int64(0)
	found := false
	for _, rc := range result.PerRole {
		if rc.Role == role {
			total += rc.AmountCents
			found = true
		}
	}
	if !found {
		t.Fatalf("no commission for role %s", role)
	}
	return total
}

func TestCalculateCommissionsHappyPath(t *testing.T) {
	t.Parallel()

	// 100.00 BRL pix sale, platform 10%, affiliate 20%, no gateway fee.
	affiliate := uuid.New()
	snap := baseSnapshot()
	snap.AffiliatePercent = pct("20")

	result, err := CalculateCommissions(SaleInput{
		GrossCents:      10000,
		SellerUserID:    uuid.New(),
		AffiliateUserID: &affiliate,
		PlatformUserID:  uuid.New(),
		Snapshot:        snap,
	})
	if err != nil {
		t.Fatalf("CalculateCommissions: %v", err)
	}

	if got := amountByRole(t, result, enums.CommissionRoleAffiliate); got != 2000 {
		t.Fatalf("affiliate share = %d, want 2000", got)
	}
	if got := amountByRole(t, result, enums.CommissionRoleProducer); got != 7000 {
		t.Fatalf("producer share = %d, want 7000", got)
	}
	if got := amountByRole(t, result, enums.CommissionRolePlatform); got != 1000 {
		t.Fatalf("platform share = %d, want 1000", got)
	}
	if result.NetAmountCents != 9000 {
		t.Fatalf("net = %d, want 9000", result.NetAmountCents)
	}
}

func TestCalculateCommissionsConservation(t *testing.T) {
	t.Parallel()

	affiliate := uuid.New()
	coA := uuid.New()
	coB := uuid.New()

	cases := []struct {
		name  string
		gross int64
		snap  Snapshot
	}{
		{
			name:  "pix with gateway percent",
			gross: 9973,
			snap: Snapshot{
				SchemaVersion:    SnapshotSchemaVersion,
				PaymentMethod:    enums.PaymentMethodPix,
				PlatformPercent:  pct("9.9"),
				GatewayPercent:   pct("0.99"),
				AffiliatePercent: pct("17.5"),
			},
		},
		{
			name:  "card with fixed fee and coproducers",
			gross: 123457,
			snap: Snapshot{
				SchemaVersion:     SnapshotSchemaVersion,
				PaymentMethod:     enums.PaymentMethodCreditCard,
				PlatformPercent:   pct("7.77"),
				GatewayPercent:    pct("4.49"),
				GatewayFixedCents: 39,
				AffiliatePercent:  pct("30"),
				CoProducers: []CoProducerSplit{
					{UserID: coA, Percent: pct("12.5")},
					{UserID: coB, Percent: pct("3.33")},
				},
			},
		},
		{
			name:  "boleto fixed fee with platform minimum",
			gross: 701,
			snap: Snapshot{
				SchemaVersion:     SnapshotSchemaVersion,
				PaymentMethod:     enums.PaymentMethodBoleto,
				PlatformPercent:   pct("9.9"),
				PlatformMinCents:  100,
				GatewayFixedCents: 349,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := CalculateCommissions(SaleInput{
				GrossCents:      tc.gross,
				SellerUserID:    uuid.New(),
				AffiliateUserID: &affiliate,
				PlatformUserID:  uuid.New(),
				Snapshot:        tc.snap,
			})
			if err != nil {
				t.Fatalf("CalculateCommissions: %v", err)
			}
			sum := int64(0)
			for _, rc := range result.PerRole {
				if rc.AmountCents < 0 {
					t.Fatalf("negative share for %s: %d", rc.Role, rc.AmountCents)
				}
				sum += rc.AmountCents
			}
			if sum+result.GatewayFeeCents != tc.gross {
				t.Fatalf("conservation broken: shares %d + gateway %d != gross %d", sum, result.GatewayFeeCents, tc.gross)
			}
		})
	}
}

func TestCalculateCommissionsDeterministic(t *testing.T) {
	t.Parallel()

	affiliate := uuid.New()
	input := SaleInput{
		GrossCents:      55333,
		SellerUserID:    uuid.New(),
		AffiliateUserID: &affiliate,
		PlatformUserID:  uuid.New(),
		Snapshot: Snapshot{
			SchemaVersion:    SnapshotSchemaVersion,
			PaymentMethod:    enums.PaymentMethodPix,
			PlatformPercent:  pct("9.9"),
			GatewayPercent:   pct("0.99"),
			AffiliatePercent: pct("25"),
		},
	}

	first, err := CalculateCommissions(input)
	if err != nil {
		t.Fatalf("CalculateCommissions: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := CalculateCommissions(input)
		if err != nil {
			t.Fatalf("CalculateCommissions replay: %v", err)
		}
		if len(again.PerRole) != len(first.PerRole) {
			t.Fatalf("role count changed between runs")
		}
		for j := range again.PerRole {
			if again.PerRole[j].AmountCents != first.PerRole[j].AmountCents {
				t.Fatalf("non-deterministic split for %s", again.PerRole[j].Role)
			}
		}
	}
}

func TestCalculateCommissionsValidation(t *testing.T) {
	t.Parallel()

	affiliate := uuid.New()

	cases := []struct {
		name  string
		input SaleInput
	}{
		{
			name: "zero gross",
			input: SaleInput{
				SellerUserID:   uuid.New(),
				PlatformUserID: uuid.New(),
				Snapshot:       baseSnapshot(),
			},
		},
		{
			name: "affiliate percent without affiliate",
			input: SaleInput{
				GrossCents:     10000,
				SellerUserID:   uuid.New(),
				PlatformUserID: uuid.New(),
				Snapshot: Snapshot{
					SchemaVersion:    SnapshotSchemaVersion,
					PaymentMethod:    enums.PaymentMethodPix,
					PlatformPercent:  pct("10"),
					AffiliatePercent: pct("20"),
				},
			},
		},
		{
			name: "coproducers over 100 percent",
			input: SaleInput{
				GrossCents:      10000,
				SellerUserID:    uuid.New(),
				AffiliateUserID: &affiliate,
				PlatformUserID:  uuid.New(),
				Snapshot: Snapshot{
					SchemaVersion:   SnapshotSchemaVersion,
					PaymentMethod:   enums.PaymentMethodPix,
					PlatformPercent: pct("10"),
					CoProducers: []CoProducerSplit{
						{UserID: uuid.New(), Percent: pct("60")},
						{UserID: uuid.New(), Percent: pct("50")},
					},
				},
			},
		},
		{
			name: "gateway fee above gross",
			input: SaleInput{
				GrossCents:     100,
				SellerUserID:   uuid.New(),
				PlatformUserID: uuid.New(),
				Snapshot: Snapshot{
					SchemaVersion:     SnapshotSchemaVersion,
					PaymentMethod:     enums.PaymentMethodBoleto,
					PlatformPercent:   pct("10"),
					GatewayFixedCents: 349,
				},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := CalculateCommissions(tc.input); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		SchemaVersion:     SnapshotSchemaVersion,
		PaymentMethod:     enums.PaymentMethodCreditCard,
		SettlementDays:    30,
		PlatformPercent:   pct("9.9"),
		GatewayPercent:    pct("3.99"),
		GatewayFixedCents: 39,
		AffiliatePercent:  pct("20"),
	}
	raw, err := snap.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := DecodeSnapshot(raw)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if !decoded.PlatformPercent.Equal(snap.PlatformPercent) || decoded.SettlementDays != 30 {
		t.Fatalf("snapshot changed in round trip: %+v", decoded)
	}

	if _, err := DecodeSnapshot([]byte(`{"schema_version":99}`)); err == nil {
		t.Fatal("expected unsupported schema version error")
	}
}
