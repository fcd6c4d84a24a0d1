// Package tokenize manages the asset lifecycle from submission through
// review to on-ledger issuance.
//
// The lifecycle is a one-way state machine:
//
//	PENDING_REVIEW -> APPROVED -> TOKENIZED -> SOLD_OUT
//	PENDING_REVIEW -> REJECTED
//
// Tokenize is idempotent: calling it on an already tokenized asset
// returns the asset unchanged.
package tokenize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"proptoken/internal/domain"
	"proptoken/internal/idhash"
	"proptoken/internal/storage"
	"proptoken/internal/xrpl"
)

// ErrInvalidTransition is returned when an operation is applied to an
// asset whose status does not allow it.
var ErrInvalidTransition = errors.New("invalid asset status transition")

// Service runs the asset lifecycle.
type Service struct {
	assets  storage.AssetStore
	client  xrpl.Client
	verbose bool

	newWallet func() (*xrpl.Wallet, error)
	now       func() int64
}

// Options for creating Service.
type Options struct {
	AssetStore storage.AssetStore
	Client     xrpl.Client
	Verbose    bool

	// NewWallet overrides issuer wallet generation, for tests.
	NewWallet func() (*xrpl.Wallet, error)
	// Now overrides the clock, for tests. Returns unix milliseconds.
	Now func() int64
}

// New creates a new Service.
func New(opts Options) *Service {
	s := &Service{
		assets:    opts.AssetStore,
		client:    opts.Client,
		verbose:   opts.Verbose,
		newWallet: opts.NewWallet,
		now:       opts.Now,
	}
	if s.newWallet == nil {
		s.newWallet = xrpl.GenerateWallet
	}
	if s.now == nil {
		s.now = func() int64 { return time.Now().UnixMilli() }
	}
	return s
}

// SubmitRequest carries the listing fields a seller provides.
type SubmitRequest struct {
	SellerID    string
	Title       string
	Description string
	Kind        domain.AssetKind
	TotalValue  float64
	SizeMetric  float64
	MonthlyRent float64
	AnnualYield float64
}

// Submit validates a listing, derives its unit structure and stores it
// in PENDING_REVIEW.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.Asset, error) {
	if strings.TrimSpace(req.SellerID) == "" {
		return nil, fmt.Errorf("%w: seller id required", storage.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title required", storage.ErrInvalidInput)
	}
	if req.TotalValue <= 0 {
		return nil, fmt.Errorf("%w: total value must be positive", storage.ErrInvalidInput)
	}
	if req.SizeMetric <= 0 {
		return nil, fmt.Errorf("%w: size must be positive", storage.ErrInvalidInput)
	}

	now := s.now()
	asset := &domain.Asset{
		ID:          idhash.ComputeAssetID(req.SellerID, req.Title, now),
		Title:       req.Title,
		Description: req.Description,
		Kind:        req.Kind,
		TotalValue:  req.TotalValue,
		SizeMetric:  req.SizeMetric,
		MonthlyRent: req.MonthlyRent,
		AnnualYield: req.AnnualYield,
		SellerID:    req.SellerID,
		Status:      domain.AssetStatusPendingReview,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	asset.CalculateUnits()
	if asset.TotalUnits == 0 {
		return nil, fmt.Errorf("%w: size %f yields zero units", storage.ErrInvalidInput, req.SizeMetric)
	}

	if err := s.assets.Insert(ctx, asset); err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}

	s.log("submitted asset %s (%s, %d units)", asset.ID, asset.Title, asset.TotalUnits)
	return asset, nil
}

// Approve moves a PENDING_REVIEW asset to APPROVED.
func (s *Service) Approve(ctx context.Context, assetID, notes string) (*domain.Asset, error) {
	return s.review(ctx, assetID, notes, domain.AssetStatusApproved)
}

// Reject moves a PENDING_REVIEW asset to REJECTED.
func (s *Service) Reject(ctx context.Context, assetID, notes string) (*domain.Asset, error) {
	return s.review(ctx, assetID, notes, domain.AssetStatusRejected)
}

func (s *Service) review(ctx context.Context, assetID, notes string, target domain.AssetStatus) (*domain.Asset, error) {
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", assetID, err)
	}

	if asset.Status != domain.AssetStatusPendingReview {
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrInvalidTransition,
			assetID, asset.Status, domain.AssetStatusPendingReview)
	}

	asset.Status = target
	asset.ReviewNotes = notes
	asset.UpdatedAt = s.now()

	if err := s.assets.Update(ctx, asset); err != nil {
		return nil, fmt.Errorf("update asset %s: %w", assetID, err)
	}

	s.log("asset %s reviewed: %s", assetID, target)
	return asset, nil
}

// Tokenize issues an APPROVED asset on the ledger: it provisions an
// issuer account when the asset has none, derives the currency symbol
// and records the issuance reference. An already tokenized asset is
// returned unchanged.
func (s *Service) Tokenize(ctx context.Context, assetID string) (*domain.Asset, error) {
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", assetID, err)
	}

	if asset.Tokenized() {
		return asset, nil
	}
	if asset.Status != domain.AssetStatusApproved {
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrInvalidTransition,
			assetID, asset.Status, domain.AssetStatusApproved)
	}

	if asset.IssuerAccount == "" {
		wallet, err := s.newWallet()
		if err != nil {
			return nil, fmt.Errorf("provision issuer wallet: %w", err)
		}
		asset.IssuerAccount = wallet.Address
		s.log("provisioned issuer %s for asset %s", wallet.Address, assetID)
	}

	asset.Symbol = idhash.ComputeSymbol(asset.ID)

	opRef, err := s.client.Issue(ctx, asset.IssuerAccount, asset.Symbol, asset.TotalUnits)
	if err != nil {
		return nil, fmt.Errorf("issue %s on ledger: %w", asset.Symbol, err)
	}

	asset.IssuanceOpRef = opRef
	asset.Status = domain.AssetStatusTokenized
	asset.UpdatedAt = s.now()

	if err := s.assets.Update(ctx, asset); err != nil {
		return nil, fmt.Errorf("update asset %s: %w", assetID, err)
	}

	s.log("tokenized asset %s as %s (%d units, op %s)", assetID, asset.Symbol, asset.TotalUnits, opRef)
	return asset, nil
}

// MarkSoldOut moves a fully subscribed TOKENIZED asset to SOLD_OUT.
// The caller is responsible for units_sold having reached total_units.
func (s *Service) MarkSoldOut(ctx context.Context, assetID string) (*domain.Asset, error) {
	asset, err := s.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("load asset %s: %w", assetID, err)
	}

	if asset.Status == domain.AssetStatusSoldOut {
		return asset, nil
	}
	if asset.Status != domain.AssetStatusTokenized {
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrInvalidTransition,
			assetID, asset.Status, domain.AssetStatusTokenized)
	}
	if asset.UnitsSold < asset.TotalUnits {
		return nil, fmt.Errorf("%w: %s has %d of %d units sold", ErrInvalidTransition,
			assetID, asset.UnitsSold, asset.TotalUnits)
	}

	asset.Status = domain.AssetStatusSoldOut
	asset.UpdatedAt = s.now()

	if err := s.assets.Update(ctx, asset); err != nil {
		return nil, fmt.Errorf("update asset %s: %w", assetID, err)
	}

	s.log("asset %s sold out", assetID)
	return asset, nil
}

func (s *Service) log(format string, args ...interface{}) {
	if s.verbose {
		log.Printf("[tokenize] "+format, args...)
	}
}
