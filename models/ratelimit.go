package models

import "time"

// RolePolicy is the request budget granted to a role for one fixed
// window. Policies are loaded at startup and immutable afterwards.
type RolePolicy struct {
	Role              string        `json:"role"`
	RequestsPerWindow int           `json:"requests_per_window"`
	WindowDuration    time.Duration `json:"window_duration"`
}

// DefaultRole is the tier unmatched roles fall back to. It carries the
// smallest request budget of the built-in tiers.
const DefaultRole = "default"

// DefaultPolicies returns the three built-in tiers.
func DefaultPolicies() map[string]RolePolicy {
	return map[string]RolePolicy{
		"admin":     {Role: "admin", RequestsPerWindow: 100, WindowDuration: time.Minute},
		"staff":     {Role: "staff", RequestsPerWindow: 50, WindowDuration: time.Minute},
		DefaultRole: {Role: DefaultRole, RequestsPerWindow: 20, WindowDuration: time.Minute},
	}
}

// Decision is the outcome of a rate-limit check. Denials are expressed
// here rather than as errors.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Count      int64         `json:"count"`
	Policy     RolePolicy    `json:"policy"`
	RetryAfter time.Duration `json:"retry_after"`
}

// RolePolicyRecord is the database row an optional policy table maps
// to. Rows override the built-in tiers at startup.
type RolePolicyRecord struct {
	Role              string `gorm:"primaryKey;column:role"`
	RequestsPerWindow int    `gorm:"column:requests_per_window"`
	WindowSeconds     int    `gorm:"column:window_seconds"`
}

// TableName sets the table used for policy bootstrap.
func (RolePolicyRecord) TableName() string {
	return "role_policies"
}

// Policy converts a stored record into an immutable runtime policy.
func (r RolePolicyRecord) Policy() RolePolicy {
	return RolePolicy{
		Role:              r.Role,
		RequestsPerWindow: r.RequestsPerWindow,
		WindowDuration:    time.Duration(r.WindowSeconds) * time.Second,
	}
}
