package dto

import (
	"time"

	"github.com/artisansflow/portal/internal/domain"
)

// ProfileResponse is a tenant profile as listed to admins.
type ProfileResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Company   string    `json:"company"`
	LogoURL   string    `json:"logo_url,omitempty"`
	Role      string    `json:"role"`
	RoleLabel string    `json:"role_label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfileResponse converts a profile for the wire.
func NewProfileResponse(p domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID,
		FullName:  p.FullName,
		Company:   p.Company,
		LogoURL:   p.LogoURL,
		Role:      string(p.Role),
		RoleLabel: p.Role.Label(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ActivityDayResponse is one point of the sign-in series.
type ActivityDayResponse struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// OverviewResponse holds admin dashboard counters.
type OverviewResponse struct {
	TotalUsers        int64                 `json:"total_users"`
	TotalSignIns      int64                 `json:"total_sign_ins"`
	ConnectionAverage int64                 `json:"connection_average"`
	Connections       []ActivityDayResponse `json:"connections"`
}

// NewActivityDays converts a series for the wire.
func NewActivityDays(days []domain.ActivityDay) []ActivityDayResponse {
	out := make([]ActivityDayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, ActivityDayResponse{Day: d.Day.Format(time.DateOnly), Count: d.Count})
	}
	return out
}

// SetRoleRequest changes a profile's role.
type SetRoleRequest struct {
	Role string `json:"role" form:"role"`
}
