package models

// StaffingConfig holds per-location ratios, usual headcount and minimums.
type StaffingConfig struct {
	CoversPerServer  int `yaml:"covers_per_server" json:"covers_per_server"`
	CoversPerHost    int `yaml:"covers_per_host" json:"covers_per_host"`
	CoversPerKitchen int `yaml:"covers_per_kitchen" json:"covers_per_kitchen"`
	UsualServers     int `yaml:"usual_servers" json:"usual_servers"`
	UsualHosts       int `yaml:"usual_hosts" json:"usual_hosts"`
	UsualKitchen     int `yaml:"usual_kitchen" json:"usual_kitchen"`
	MinServers       int `yaml:"min_servers" json:"min_servers"`
	MinHosts         int `yaml:"min_hosts" json:"min_hosts"`
	MinKitchen       int `yaml:"min_kitchen" json:"min_kitchen"`
}

// DefaultStaffingConfig returns the baseline used when a location has no overrides.
func DefaultStaffingConfig() StaffingConfig {
	return StaffingConfig{
		CoversPerServer:  18,
		CoversPerHost:    70,
		CoversPerKitchen: 50,
		UsualServers:     7,
		UsualHosts:       2,
		UsualKitchen:     3,
		MinServers:       2,
		MinHosts:         1,
		MinKitchen:       1,
	}
}

// RoleStaffing is the recommendation for a single role.
type RoleStaffing struct {
	Recommended int `json:"recommended"`
	Usual       int `json:"usual"`
	Delta       int `json:"delta"`
}

// StaffPlan is the staffing recommendation derived from predicted covers.
type StaffPlan struct {
	Servers        RoleStaffing `json:"servers"`
	Hosts          RoleStaffing `json:"hosts"`
	Kitchen        RoleStaffing `json:"kitchen"`
	Rationale      string       `json:"rationale"`
	CoversPerStaff float64      `json:"covers_per_staff"`
}

// TotalRecommended sums recommended headcount across roles.
func (p StaffPlan) TotalRecommended() int {
	return p.Servers.Recommended + p.Hosts.Recommended + p.Kitchen.Recommended
}
