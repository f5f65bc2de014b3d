package domain

// FeatureKey identifies a gated application area.
type FeatureKey string

const (
	FeatureDashboard FeatureKey = "dashboard"
	FeatureClients   FeatureKey = "clients"
	FeatureStats     FeatureKey = "stats"
	FeatureSettings  FeatureKey = "settings"
	FeatureAdmin     FeatureKey = "admin"
)

var allFeatures = []FeatureKey{
	FeatureDashboard,
	FeatureClients,
	FeatureStats,
	FeatureSettings,
	FeatureAdmin,
}

// AllFeatures returns the closed set of feature keys.
func AllFeatures() []FeatureKey {
	return append([]FeatureKey(nil), allFeatures...)
}

// IsKnownFeature reports whether key belongs to the feature set.
func IsKnownFeature(key FeatureKey) bool {
	for _, f := range allFeatures {
		if f == key {
			return true
		}
	}
	return false
}
