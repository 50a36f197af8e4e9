// Package segments groups customers by closed, typed criteria.
package segments

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wholesale-hub/settlement/internal/credit"
)

// ErrUnknownCriteria indicates a criteria document with an unsupported type.
var ErrUnknownCriteria = errors.New("segments: unknown criteria type")

// Profile is what criteria are evaluated against.
type Profile struct {
	UserID         int64
	OrderCount     int
	TotalPurchases decimal.Decimal
	CityID         int64
	LoyaltyTier    credit.Level
}

// ProfileFromAccount fills the credit-derived fields of a profile.
func ProfileFromAccount(acct credit.Account, orderCount int, cityID int64) Profile {
	return Profile{
		UserID:         acct.UserID,
		OrderCount:     orderCount,
		TotalPurchases: acct.TotalPurchases,
		CityID:         cityID,
		LoyaltyTier:    acct.LoyaltyLevel,
	}
}

// Criteria is one of the variants below. The set is closed.
type Criteria interface {
	criteria()
}

// MinOrders matches customers with at least N orders.
type MinOrders struct{ N int }

// MinPurchases matches customers whose lifetime purchases reach Amount.
type MinPurchases struct{ Amount decimal.Decimal }

// CityID matches customers located in one city.
type CityID struct{ ID int64 }

// LoyaltyTier matches customers at Tier or above.
type LoyaltyTier struct{ Tier credit.Level }

// All matches when every member matches. An empty All matches everyone.
type All []Criteria

// Any matches when at least one member matches.
type Any []Criteria

func (MinOrders) criteria()    {}
func (MinPurchases) criteria() {}
func (CityID) criteria()       {}
func (LoyaltyTier) criteria()  {}
func (All) criteria()          {}
func (Any) criteria()          {}

// Match evaluates c against p. It has no side effects.
func Match(c Criteria, p Profile) bool {
	switch c := c.(type) {
	case MinOrders:
		return p.OrderCount >= c.N
	case MinPurchases:
		return p.TotalPurchases.GreaterThanOrEqual(c.Amount)
	case CityID:
		return p.CityID == c.ID
	case LoyaltyTier:
		return credit.AtLeast(p.LoyaltyTier, c.Tier)
	case All:
		for _, sub := range c {
			if !Match(sub, p) {
				return false
			}
		}
		return true
	case Any:
		for _, sub := range c {
			if Match(sub, p) {
				return true
			}
		}
		return false
	}
	return false
}

// Filter returns the profiles matching c, in input order.
func Filter(c Criteria, profiles []Profile) []Profile {
	var out []Profile
	for _, p := range profiles {
		if Match(c, p) {
			out = append(out, p)
		}
	}
	return out
}

// document is the stored form of a criteria tree.
type document struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
	Of    []document      `json:"of,omitempty"`
}

// Parse decodes a stored criteria document into its variant. Parsing happens
// once at the boundary; Match never sees raw JSON.
func Parse(raw []byte) (Criteria, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("segments: decode criteria: %w", err)
	}
	return fromDocument(doc)
}

func fromDocument(doc document) (Criteria, error) {
	switch doc.Type {
	case "min_orders":
		var n int
		if err := json.Unmarshal(doc.Value, &n); err != nil || n < 0 {
			return nil, errors.New("segments: min_orders needs a non-negative integer")
		}
		return MinOrders{N: n}, nil
	case "min_purchases":
		var d decimal.Decimal
		if err := json.Unmarshal(doc.Value, &d); err != nil {
			return nil, fmt.Errorf("segments: min_purchases: %w", err)
		}
		return MinPurchases{Amount: d}, nil
	case "city_id":
		var id int64
		if err := json.Unmarshal(doc.Value, &id); err != nil {
			return nil, fmt.Errorf("segments: city_id: %w", err)
		}
		return CityID{ID: id}, nil
	case "loyalty_tier":
		var level credit.Level
		if err := json.Unmarshal(doc.Value, &level); err != nil {
			return nil, fmt.Errorf("segments: loyalty_tier: %w", err)
		}
		if _, ok := credit.TierByLevel(level); !ok {
			return nil, fmt.Errorf("segments: loyalty_tier %q: %w", level, ErrUnknownCriteria)
		}
		return LoyaltyTier{Tier: level}, nil
	case "all", "any":
		subs := make([]Criteria, 0, len(doc.Of))
		for _, d := range doc.Of {
			c, err := fromDocument(d)
			if err != nil {
				return nil, err
			}
			subs = append(subs, c)
		}
		if doc.Type == "all" {
			return All(subs), nil
		}
		return Any(subs), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCriteria, doc.Type)
}
