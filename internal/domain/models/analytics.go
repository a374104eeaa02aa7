package models

// Attribution splits a scenario P&L by factor and by asset.
type Attribution struct {
	Total    float64            `json:"total"`
	ByFactor map[string]float64 `json:"by_factor"`
	ByAsset  map[string]float64 `json:"by_asset"`
	Weights  map[string]float64 `json:"weights"`
}

// VarianceSplit is the systematic / idiosyncratic decomposition of one asset.
type VarianceSplit struct {
	Asset              string  `json:"asset"`
	Lookback           int     `json:"lookback"`
	Systematic         float64 `json:"systematic"`
	Idiosyncratic      float64 `json:"idiosyncratic"`
	Total              float64 `json:"total"`
	SystematicShare    float64 `json:"systematic_share"`
	IdiosyncraticShare float64 `json:"idiosyncratic_share"`
}

// CorrelationMatrix is a labelled symmetric matrix.
type CorrelationMatrix struct {
	Factors []string    `json:"factors"`
	Values  [][]float64 `json:"values"`
}

// CorrelatedPair flags two factors whose correlation breaches a threshold.
type CorrelatedPair struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Correlation float64 `json:"correlation"`
}

// ScenarioReport bundles a scenario vector with its portfolio attribution.
type ScenarioReport struct {
	ShockFactor string         `json:"shock_factor"`
	ShockSize   float64        `json:"shock_size"`
	Tail        string         `json:"tail"`
	Vector      ScenarioVector `json:"vector"`
	Attribution Attribution    `json:"attribution"`
	RunID       string         `json:"run_id"`
}
