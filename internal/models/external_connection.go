package models

import "time"

// ConnectionKind is the closed enumeration of external catalog services
// External Sync can talk to.
type ConnectionKind string

const (
	ConnectionKindCatalogMovie  ConnectionKind = "catalog-movie"
	ConnectionKindCatalogSeries ConnectionKind = "catalog-series"
	ConnectionKindSceneLibrary  ConnectionKind = "scene-library"
)

func (k ConnectionKind) Valid() bool {
	switch k {
	case ConnectionKindCatalogMovie, ConnectionKindCatalogSeries, ConnectionKindSceneLibrary:
		return true
	}
	return false
}

// ExternalConnection describes one external catalog/scene service. The API
// key is stored encrypted (see internal/externalsync for the AEAD
// wrapping) and is never serialised in cleartext; JSON marshalling exposes
// only a last-4 preview via APIKeyPreview.
type ExternalConnection struct {
	BaseModel

	Name    string         `gorm:"uniqueIndex;not null" json:"name"`
	Kind    ConnectionKind `gorm:"type:varchar(24);not null" json:"kind"`
	BaseURL string         `gorm:"not null" json:"base_url"`

	// EncryptedAPIKey holds ciphertext only; it is never exposed via JSON.
	EncryptedAPIKey []byte `gorm:"column:encrypted_api_key" json:"-"`
	APIKeyLast4     string `gorm:"column:api_key_last4" json:"api_key_preview,omitempty"`

	Enabled    bool       `gorm:"not null;default:true" json:"enabled"`
	LastTested *time.Time `json:"last_tested,omitempty"`
	LastSynced *time.Time `json:"last_synced,omitempty"`
}

func (ExternalConnection) TableName() string {
	return "external_connections"
}

func (c *ExternalConnection) Validate() error {
	if c.Name == "" {
		return ErrNameRequired
	}
	if !c.Kind.Valid() {
		return ErrInvalidConnectionKind
	}
	if c.BaseURL == "" {
		return ErrBaseURLRequired
	}
	return nil
}
