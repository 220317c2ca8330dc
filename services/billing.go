package services

import "kaizen/models"

// CanAccessContent gates content by tier. Free content is open to everyone and
// pro content requires a tier of exactly "pro". Unknown requirements are closed.
func CanAccessContent(userTier, required models.Tier) bool {
	switch required {
	case models.TierFree:
		return true
	case models.TierPro:
		return userTier == models.TierPro
	default:
		return false
	}
}

// EffectiveTier maps anything that is not a known tier to free.
func EffectiveTier(tier models.Tier) models.Tier {
	if tier.Valid() {
		return tier
	}
	return models.TierFree
}

// IsValidPlan reports whether plan names a known tier.
func IsValidPlan(plan string) bool {
	return models.Tier(plan).Valid()
}
