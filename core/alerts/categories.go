package alerts

import (
	"strings"

	"checkops/core/checklists"
)

var categoryMap = map[string]string{
	"fire":                checklists.CategoryEmergency,
	"smoke":               checklists.CategoryEmergency,
	"flood":               checklists.CategoryEmergency,
	"unauthorized_access": checklists.CategorySecurity,
	"intrusion":           checklists.CategorySecurity,
	"tailgating":          checklists.CategorySecurity,
	"loitering":           checklists.CategorySecurity,
	"equipment":           checklists.CategoryMaintenance,
	"equipment_failure":   checklists.CategoryMaintenance,
	"camera_offline":      checklists.CategoryMaintenance,
}

// TemplateCategory maps an alert category to the checklist category it spawns.
// Template categories map to themselves. An empty result means no checklist.
func TemplateCategory(alertCategory string) string {
	c := strings.ToLower(strings.TrimSpace(alertCategory))
	c = strings.ReplaceAll(strings.ReplaceAll(c, "-", "_"), " ", "_")
	if mapped, ok := categoryMap[c]; ok {
		return mapped
	}
	if checklists.ValidCategory(c) && c != checklists.CategoryOther {
		return c
	}
	return ""
}
