package dto

import (
	"github.com/artisansflow/portal/internal/domain"
)

// PlanResponse is one subscription offer.
type PlanResponse struct {
	Role         string   `json:"role"`
	Name         string   `json:"name"`
	PriceID      string   `json:"price_id"`
	Monthly      int      `json:"monthly"`
	Features     []string `json:"features"`
	FeatureLimit int      `json:"feature_limit"`
}

// NewPlanResponses converts plans for the wire.
func NewPlanResponses(plans []domain.Plan) []PlanResponse {
	out := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, PlanResponse{
			Role:         string(p.Role),
			Name:         p.Name,
			PriceID:      p.PriceID,
			Monthly:      p.Monthly,
			Features:     p.Features,
			FeatureLimit: p.FeatureLimit,
		})
	}
	return out
}

// ViewerResponse is the signed-in tenant as shown in the page chrome.
type ViewerResponse struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	Role         string           `json:"role"`
	RoleLabel    string           `json:"role_label"`
	Description  string           `json:"description"`
	FeatureLimit int              `json:"feature_limit"`
	PlanFeatures []string         `json:"plan_features"`
	Features     []string         `json:"features"`
	Navigation   []domain.NavLink `json:"navigation"`
}

// PageResponse wraps a protected page with its chrome.
type PageResponse struct {
	Page   string         `json:"page"`
	Title  string         `json:"title"`
	Viewer ViewerResponse `json:"viewer"`
	Data   any            `json:"data,omitempty"`
}

// SettingsRequest carries editable display attributes.
type SettingsRequest struct {
	FullName string `json:"full_name" form:"full_name"`
	Company  string `json:"company" form:"company"`
	LogoURL  string `json:"logo_url" form:"logo_url"`
}

// SettingsResponse echoes display attributes.
type SettingsResponse struct {
	FullName string `json:"full_name"`
	Company  string `json:"company"`
	LogoURL  string `json:"logo_url"`
}
