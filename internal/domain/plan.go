package domain

// Plan is a billable subscription offered at sign-up.
type Plan struct {
	Role         Role     `json:"role"`
	Name         string   `json:"name"`
	PriceID      string   `json:"price_id"`
	Monthly      int      `json:"monthly"`
	Features     []string `json:"features"`
	FeatureLimit int      `json:"feature_limit"`
}

var planFeatures = map[Role][]string{
	RoleBasic: {
		"Client management",
		"Dashboard",
		"Quote tracking",
		"PDF exports",
		"Standard support",
	},
	RolePro: {
		"Email automations",
		"Payment tracking",
		"Statistics access",
		"Unlimited team",
		"Priority support",
		"Marketing widgets",
		"Advanced labels",
		"Detailed history",
		"Dynamic tags",
		"Smart segments",
		"Unlimited templates",
		"CSV exports",
		"Shared notes",
		"Kanban pipeline",
		"Automatic reminders",
	},
	RoleUltimate: {
		"Every Pro feature",
		"Conditional automations",
		"Electronic signature",
		"Client portal",
		"Private API",
		"Advanced webhooks",
		"Custom documents",
		"SSO authentication",
		"Multi-brand management",
		"Priority storage",
		"Realtime monitoring",
		"Premium reports",
		"Projected revenue",
		"Recurring budgets",
		"SMS campaigns",
		"Multi-workspace automations",
		"Unlimited API tokens",
		"VIP assistance",
		"7/7 support",
		"Onboarding training",
		"Priority roadmap",
		"Raw data",
		"Multi-team workflows",
		"Custom boards",
		"White-label exports",
	},
	RoleVIP: {
		"Every Ultimate feature",
		"Dedicated customer success",
		"Monthly live sessions",
		"Exclusive marketing kits",
		"Priority beta access",
		"Tailored growth strategy",
		"Quarterly audit",
		"Private workshops",
		"Custom design system",
		"Co-piloted roadmap",
		"Early app access",
		"Custom monitoring",
		"Leadership coaching",
		"Hourly SLA",
		"Consolidated data",
		"Multi-organisation boards",
		"Automatic exports",
		"Premium connectors",
		"VIP resources",
		"Dedicated training",
		"WhatsApp support",
		"Unlimited A/B testing",
		"Strategic reviews",
		"C-level mentoring",
		"Unlimited sandbox",
	},
	RoleAdmin: {
		"Full access",
		"User supervision",
		"Global statistics",
		"CSV/PDF exports",
		"Expense management",
	},
}

var signupPlans = []Plan{
	{Role: RoleBasic, PriceID: "price_basic_artisansflow", Monthly: 19},
	{Role: RolePro, PriceID: "price_pro_artisansflow", Monthly: 49},
	{Role: RoleUltimate, PriceID: "price_ultimate_artisansflow", Monthly: 119},
}

// PlanFeatures returns the marketing bullet list of the tier.
func (r Role) PlanFeatures() []string {
	if !r.IsKnown() {
		r = DefaultRole
	}
	return append([]string(nil), planFeatures[r]...)
}

// SignupPlans lists the plans selectable at sign-up, cheapest first.
func SignupPlans() []Plan {
	plans := make([]Plan, 0, len(signupPlans))
	for _, p := range signupPlans {
		plans = append(plans, p.withDetails())
	}
	return plans
}

// PlanFor returns the plan of role, falling back to the first sign-up plan.
func PlanFor(role Role) Plan {
	for _, p := range signupPlans {
		if p.Role == role {
			return p.withDetails()
		}
	}
	return signupPlans[0].withDetails()
}

// IsSignupRole reports whether a visitor may pick role when registering.
func IsSignupRole(role Role) bool {
	for _, p := range signupPlans {
		if p.Role == role {
			return true
		}
	}
	return false
}

func (p Plan) withDetails() Plan {
	p.Name = p.Role.Label()
	p.Features = p.Role.PlanFeatures()
	p.FeatureLimit = p.Role.FeatureLimit()
	return p
}
