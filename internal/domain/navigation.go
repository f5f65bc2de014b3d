package domain

// NavLink is one sidebar entry.
type NavLink struct {
	Href    string     `json:"href"`
	Label   string     `json:"label"`
	Feature FeatureKey `json:"feature"`
}

var navLinks = []NavLink{
	{Href: "/dashboard", Label: "Dashboard", Feature: FeatureDashboard},
	{Href: "/dashboard/clients", Label: "Clients", Feature: FeatureClients},
	{Href: "/dashboard/stats", Label: "Statistics", Feature: FeatureStats},
	{Href: "/dashboard/settings", Label: "Settings", Feature: FeatureSettings},
	{Href: "/admin", Label: "Admin", Feature: FeatureAdmin},
}

// NavigationFor lists the sidebar links whose feature role holds.
func NavigationFor(role Role) []NavLink {
	role = NormalizeRole(string(role))
	out := make([]NavLink, 0, len(navLinks))
	for _, link := range navLinks {
		if role.Allows(link.Feature) {
			out = append(out, link)
		}
	}
	return out
}
