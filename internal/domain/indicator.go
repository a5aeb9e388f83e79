package domain

import "time"

// IndicatorSpec is the exported description of a candidate expression: enough to
// reconstruct its PineScript text and to report complexity/parameters to a caller
// without exposing the AST itself.
type IndicatorSpec struct {
	IndicatorID string         `json:"indicator_id"`
	Expression  string         `json:"expression"`
	Complexity  int            `json:"complexity"`
	Params      map[string]any `json:"params"`
}

// HorizonScore is the evaluation outcome of one candidate at one forecast horizon.
type HorizonScore struct {
	Horizon             int     `json:"horizon"`
	NormalizedRMSE      float64 `json:"normalized_rmse"`
	NormalizedMAE       float64 `json:"normalized_mae"`
	CompositeError      float64 `json:"composite_error"`
	DirectionalHitRate  float64 `json:"directional_hit_rate"`
}

// ScoreCard is the final per-asset scorecard reported in a ResultSummary.
type ScoreCard struct {
	NormalizedRMSE     float64 `json:"normalized_rmse"`
	NormalizedMAE      float64 `json:"normalized_mae"`
	CompositeError     float64 `json:"composite_error"`
	DirectionalHitRate float64 `json:"directional_hit_rate"`
	PnLTotal           float64 `json:"pnl_total"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	Turnover           float64 `json:"turnover"`
	StabilityScore     float64 `json:"stability_score"`
}

// AssetRecommendation pairs a symbol/timeframe with the indicator combo the search
// settled on and its resulting scorecard.
type AssetRecommendation struct {
	Symbol         string           `json:"symbol"`
	Timeframe      string           `json:"timeframe"`
	BestHorizon    int              `json:"best_horizon"`
	IndicatorCombo []IndicatorSpec  `json:"indicator_combo"`
	Score          ScoreCard        `json:"score"`
}

// ResultSummary is the top-level artifact a completed indicator-search run produces.
type ResultSummary struct {
	RunID                  string                `json:"run_id"`
	UniversalRecommendation AssetRecommendation  `json:"universal_recommendation"`
	PerAssetRecommendations []AssetRecommendation `json:"per_asset_recommendations"`
	GeneratedAt            time.Time             `json:"generated_at"`
}

// PineFile is one exported PineScript source file for a single indicator.
type PineFile struct {
	IndicatorID string `json:"indicator_id"`
	Filename    string `json:"filename"`
	Source      string `json:"source"`
}

// PineBundle bundles every exported Pine file for a run.
type PineBundle struct {
	RunID string     `json:"run_id"`
	Files []PineFile `json:"files"`
}
