package repository

import "CoinTrack/internal/domain/models"

// IsValidSource returns true if s is a supported upstream provider.
func IsValidSource(s models.Source) bool {
	switch s {
	case models.SourceCoinGecko, models.SourceCoinLore:
		return true
	default:
		return false
	}
}

// DefaultSource returns the default provider.
func DefaultSource() models.Source { return models.SourceCoinGecko }
