package models

// Requests for the risk HTTP endpoints.

type RefreshRequest struct {
	Window int `query:"window" json:"window" default:"252" validate:"gte=1,lte=5000"`
}

type ScenarioRequest struct {
	Factor string `query:"factor" json:"factor" default:"^VIX" validate:"required,ticker"`
	// Size has no default tag: an explicit zero is a valid shock, absence is not.
	Size float64 `query:"size" json:"size" validate:"gt=-5,lt=5"`
	Tail string  `query:"tail" json:"tail" default:"upper" validate:"oneof=upper lower"`
}

type DecompositionRequest struct {
	Asset    string `param:"asset" validate:"required,ticker"`
	Lookback int    `query:"lookback" json:"lookback" validate:"gte=0,lte=5000"`
}

type AssetRequest struct {
	Asset string `param:"asset" query:"asset" validate:"required,ticker"`
}

type CorrelationRequest struct {
	Threshold float64 `query:"threshold" json:"threshold" default:"0.7" validate:"gt=0,lte=1"`
}
