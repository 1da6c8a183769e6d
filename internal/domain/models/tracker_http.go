package models

// Requests for tracker HTTP endpoints.

type ViewRequest struct {
	Limit  int    `query:"limit" json:"limit" default:"0" validate:"gte=0,lte=10000"`
	Filter string `query:"filter" json:"filter" validate:"max=64"`
}

type SourceRequest struct {
	Source string `json:"source" validate:"required,oneof=coingecko coinlore"`
}

type SearchRequest struct {
	Query string `query:"q" json:"q" validate:"max=64"`
}

type ViewResponse struct {
	View     View     `json:"view"`
	Snapshot Snapshot `json:"state"`
	// Total is the number of assets in the view before filter and limit.
	Total int `json:"total"`
}
