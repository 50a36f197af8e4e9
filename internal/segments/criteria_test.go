package segments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wholesale-hub/settlement/internal/credit"
)

func TestMatch(t *testing.T) {
	p := Profile{
		UserID:         1,
		OrderCount:     4,
		TotalPurchases: decimal.NewFromInt(1_200_000),
		CityID:         12,
		LoyaltyTier:    credit.LevelSilver,
	}
	tests := []struct {
		name string
		c    Criteria
		want bool
	}{
		{"min orders met", MinOrders{N: 4}, true},
		{"min orders missed", MinOrders{N: 5}, false},
		{"min purchases", MinPurchases{Amount: decimal.NewFromInt(1_000_000)}, true},
		{"city", CityID{ID: 12}, true},
		{"other city", CityID{ID: 3}, false},
		{"tier below", LoyaltyTier{Tier: credit.LevelBronze}, true},
		{"tier above", LoyaltyTier{Tier: credit.LevelGold}, false},
		{"empty all", All{}, true},
		{"empty any", Any{}, false},
		{"all", All{MinOrders{N: 1}, CityID{ID: 12}}, true},
		{"all with miss", All{MinOrders{N: 1}, CityID{ID: 3}}, false},
		{"any", Any{CityID{ID: 3}, LoyaltyTier{Tier: credit.LevelSilver}}, true},
		{"nested", Any{All{CityID{ID: 3}}, All{MinOrders{N: 2}, MinPurchases{Amount: decimal.NewFromInt(5)}}}, true},
		{"nil", nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Match(tc.c, p))
		})
	}
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`{"type":"all","of":[
		{"type":"min_orders","value":3},
		{"type":"any","of":[{"type":"city_id","value":12},{"type":"loyalty_tier","value":"gold"}]},
		{"type":"min_purchases","value":"250000.50"}
	]}`))
	require.NoError(t, err)

	all, ok := c.(All)
	require.True(t, ok)
	require.Len(t, all, 3)
	assert.Equal(t, MinOrders{N: 3}, all[0])
	assert.Equal(t, Any{CityID{ID: 12}, LoyaltyTier{Tier: credit.LevelGold}}, all[1])
	assert.True(t, all[2].(MinPurchases).Amount.Equal(decimal.RequireFromString("250000.50")))
}

func TestParseRejectsUnknown(t *testing.T) {
	_, err := Parse([]byte(`{"type":"favourite_colour","value":"red"}`))
	require.ErrorIs(t, err, ErrUnknownCriteria)

	_, err = Parse([]byte(`{"type":"loyalty_tier","value":"platinum"}`))
	require.ErrorIs(t, err, ErrUnknownCriteria)

	_, err = Parse([]byte(`{"type":"min_orders","value":-1}`))
	require.Error(t, err)
}

func TestFilterKeepsOrder(t *testing.T) {
	acct := credit.NewAccount(3)
	profiles := []Profile{
		{UserID: 1, OrderCount: 1},
		{UserID: 2, OrderCount: 9},
		ProfileFromAccount(acct, 5, 1),
	}
	got := Filter(MinOrders{N: 2}, profiles)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].UserID)
	assert.Equal(t, int64(3), got[1].UserID)
	assert.Equal(t, credit.LevelBronze, got[1].LoyaltyTier)
}
