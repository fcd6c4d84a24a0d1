package verify

import (
	"context"
	"fmt"
	"testing"

	"proptoken/internal/domain"
	"proptoken/internal/ledger"
	"proptoken/internal/storage/memory"
)

type fixture struct {
	auditor      *Auditor
	assets       *memory.AssetStore
	transactions *memory.TransactionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	assets := memory.NewAssetStore()
	transactions := memory.NewTransactionStore()
	own := ledger.New(transactions, assets)
	return &fixture{auditor: New(assets, own), assets: assets, transactions: transactions}
}

func (f *fixture) seedAsset(t *testing.T, id string, totalUnits int64) {
	t.Helper()
	asset := &domain.Asset{
		ID:         id,
		Title:      id,
		TotalValue: float64(totalUnits),
		SizeMetric: float64(totalUnits) / 10000,
		Status:     domain.AssetStatusTokenized,
	}
	asset.CalculateUnits()
	if asset.TotalUnits != totalUnits {
		t.Fatalf("seeded %d units, want %d", asset.TotalUnits, totalUnits)
	}
	if err := f.assets.Insert(context.Background(), asset); err != nil {
		t.Fatalf("insert asset: %v", err)
	}
}

var seedSeq int

func (f *fixture) seedTx(t *testing.T, holderID, assetID string, txType domain.TransactionType, units int64) {
	t.Helper()
	seedSeq++
	tx := &domain.LedgerTransaction{
		ID:        fmt.Sprintf("seed-%04d", seedSeq),
		Type:      txType,
		Status:    domain.TxStatusCompleted,
		HolderID:  holderID,
		AssetID:   assetID,
		Units:     units,
		Amount:    float64(units),
		CreatedAt: int64(1690000000000 + seedSeq),
	}
	if err := f.transactions.Insert(context.Background(), tx); err != nil {
		t.Fatalf("seed tx: %v", err)
	}
}

func TestAuditCleanLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedAsset(t, "asset-1", 1000)
	f.seedTx(t, "alice", "asset-1", domain.TxTypeUnitPurchase, 600)
	f.seedTx(t, "bob", "asset-1", domain.TxTypeUnitPurchase, 400)

	report, err := f.auditor.AuditAll(ctx)
	if err != nil {
		t.Fatalf("AuditAll: %v", err)
	}
	if !report.Clean() {
		t.Errorf("expected clean report, got %+v", report.Findings)
	}
	if report.AssetsAudited != 1 {
		t.Errorf("AssetsAudited = %d, want 1", report.AssetsAudited)
	}
}

func TestAuditDetectsNegativeHoldings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedAsset(t, "asset-1", 1000)
	f.seedTx(t, "alice", "asset-1", domain.TxTypeUnitPurchase, 100)
	f.seedTx(t, "alice", "asset-1", domain.TxTypeSecondarySell, 150)

	findings, err := f.auditor.AuditAsset(ctx, "asset-1")
	if err != nil {
		t.Fatalf("AuditAsset: %v", err)
	}
	if len(findings) != 1 || findings[0].Kind != FindingNegativeHoldings {
		t.Fatalf("findings = %+v, want one NEGATIVE_HOLDINGS", findings)
	}
}

func TestAuditDetectsOversold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedAsset(t, "asset-1", 1000)
	f.seedTx(t, "alice", "asset-1", domain.TxTypeUnitPurchase, 800)
	f.seedTx(t, "bob", "asset-1", domain.TxTypeUnitPurchase, 400)

	findings, err := f.auditor.AuditAsset(ctx, "asset-1")
	if err != nil {
		t.Fatalf("AuditAsset: %v", err)
	}
	if len(findings) != 1 || findings[0].Kind != FindingOversold {
		t.Fatalf("findings = %+v, want one OVERSOLD", findings)
	}
}
