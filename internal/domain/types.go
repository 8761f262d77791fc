// Package domain holds the slow-changing dimension and fact types shared by
// every layer of the funding tracker: coordinators, repositories and
// adapters all speak these types, never raw DB rows or raw venue JSON.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Asset is a base instrument identifier, e.g. "BTC". Name is the primary
// key. Inserted on first observation, never deleted.
type Asset struct {
	Name string `db:"name" json:"name"`
}

// Quote is a quote-currency identifier, e.g. "USDT". Same shape and
// lifecycle as Asset.
type Quote struct {
	Name string `db:"name" json:"name"`
}

// Section is an exchange identifier, e.g. "hyperliquid". Carries an opaque
// settings blob persisted as JSON.
type Section struct {
	Name     string `db:"name" json:"name"`
	Settings []byte `db:"settings" json:"settings"`
}

// Contract is a perpetual contract listed on one Section, identified by the
// (asset, section, quote) triple. FundingInterval is mutable; the triple
// itself is the unique key.
type Contract struct {
	ID              uuid.UUID `db:"id" json:"id"`
	AssetName       string    `db:"asset_name" json:"asset_name"`
	SectionName     string    `db:"section_name" json:"section_name"`
	QuoteName       string    `db:"quote_name" json:"quote_name"`
	FundingInterval int       `db:"funding_interval" json:"funding_interval"`
	Deprecated      bool      `db:"deprecated" json:"deprecated"`
	Synced          bool      `db:"synced" json:"synced"`
}

// ContractInfo is what an adapter's get_contracts analog returns: enough to
// upsert a Contract row, not a full Contract (no ID, no synced state yet).
type ContractInfo struct {
	AssetName       string
	QuoteName       string
	SectionName     string
	FundingInterval int
}

// FundingPoint is a single settled or live funding-rate observation.
// FundingRate is a signed decimal, 1e-4 == 1bp.
type FundingPoint struct {
	ContractID  uuid.UUID
	Timestamp   time.Time
	FundingRate float64
}
