package model

type Material struct {
	MaterialID int64  `json:"material_id"`
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle,omitempty"`
	Edition    string `json:"edition,omitempty"`
	Year       int    `json:"year,omitempty"`
	Type       string `json:"type,omitempty"`
	Tier       int    `json:"tier,omitempty"`
	Status     string `json:"status,omitempty"`
	IsGlobal   bool   `json:"is_global"`
}

// MaterialAsset is a material joined with its primary file asset.
type MaterialAsset struct {
	MaterialID int64
	Title      string
	Asset      FileAsset
}

type AccessKind string

const (
	AccessKindLocal  AccessKind = "local"
	AccessKindRemote AccessKind = "remote"
)

// MaterialInfo tells a caller how to display a material. Remote materials
// carry a URL; local ones must be fetched page by page.
type MaterialInfo struct {
	MaterialID int64      `json:"material_id"`
	Title      string     `json:"title"`
	Kind       AccessKind `json:"type"`
	URL        string     `json:"url,omitempty"`
	Pages      int        `json:"pages,omitempty"`
}
