package advisor

import "github.com/alanyoungcy/poolpilot/internal/domain"

// apiToken mirrors the advisor's token JSON.
type apiToken struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// apiPool mirrors the advisor's pool recommendation JSON.
type apiPool struct {
	PoolAddress string   `json:"poolAddress"`
	Token0      apiToken `json:"token0"`
	Token1      apiToken `json:"token1"`
	FeeTier     int      `json:"feeTier"`
}

// apiResponse is the advisor recommendations payload.
type apiResponse struct {
	Risky        *apiPool `json:"risky"`
	Conservative *apiPool `json:"conservative"`
}

func (p *apiPool) toDomain(band domain.RiskBand) *domain.PoolRecommendation {
	if p == nil {
		return nil
	}
	return &domain.PoolRecommendation{
		PoolAddress: p.PoolAddress,
		Token0: domain.Token{
			Address:  p.Token0.Address,
			Symbol:   p.Token0.Symbol,
			Decimals: p.Token0.Decimals,
		},
		Token1: domain.Token{
			Address:  p.Token1.Address,
			Symbol:   p.Token1.Symbol,
			Decimals: p.Token1.Decimals,
		},
		FeeTier: p.FeeTier,
		Band:    band,
	}
}
