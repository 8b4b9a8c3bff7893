package staffing

import (
	"fmt"
	"math"

	"github.com/miradorstack/covers-forecast/internal/models"
)

// Recommend derives per-role headcount from predicted covers. It is pure and
// fails only on negative covers or non-positive ratios.
func Recommend(covers int, cfg models.StaffingConfig) (models.StaffPlan, error) {
	if covers < 0 {
		return models.StaffPlan{}, fmt.Errorf("%w: predicted covers %d is negative", models.ErrInvalidInput, covers)
	}
	if cfg.CoversPerServer <= 0 || cfg.CoversPerHost <= 0 || cfg.CoversPerKitchen <= 0 {
		return models.StaffPlan{}, fmt.Errorf("%w: covers-per-role ratios must be positive", models.ErrInvalidInput)
	}

	plan := models.StaffPlan{
		Servers: role(covers, cfg.CoversPerServer, cfg.MinServers, cfg.UsualServers),
		Hosts:   role(covers, cfg.CoversPerHost, cfg.MinHosts, cfg.UsualHosts),
		Kitchen: role(covers, cfg.CoversPerKitchen, cfg.MinKitchen, cfg.UsualKitchen),
	}
	plan.Rationale = Rationale(covers, plan.Servers.Delta)
	if total := plan.TotalRecommended(); total > 0 {
		plan.CoversPerStaff = math.Round(float64(covers)/float64(total)*10) / 10
	}
	return plan, nil
}

func role(covers, perRole, minimum, usual int) models.RoleStaffing {
	needed := (covers + perRole - 1) / perRole
	recommended := max(minimum, needed)
	return models.RoleStaffing{
		Recommended: recommended,
		Usual:       usual,
		Delta:       recommended - usual,
	}
}

// Rationale describes demand intensity from the server delta.
func Rationale(covers, serverDelta int) string {
	var intensity, action string
	switch {
	case serverDelta > 2:
		intensity = "Very high"
		action = fmt.Sprintf("Add %d servers to handle peak demand", serverDelta)
	case serverDelta > 0:
		intensity = "Above average"
		action = fmt.Sprintf("Add %d server(s) for smooth service", serverDelta)
	case serverDelta < -2:
		intensity = "Low"
		action = fmt.Sprintf("Reduce by %d servers to optimize costs", -serverDelta)
	case serverDelta < 0:
		intensity = "Below average"
		action = fmt.Sprintf("Consider reducing by %d server(s)", -serverDelta)
	default:
		intensity = "Normal"
		action = "Maintain usual staffing levels"
	}
	return fmt.Sprintf("%s demand (%d covers). %s.", intensity, covers, action)
}
