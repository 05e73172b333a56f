package evaluation

import (
	"strconv"
	"strings"
)

// ParseFormCodes decodes a survey item's value_for_reports field, an encoded
// list like "e:2001;t:2002;m:2003" mapping role markers to form codes:
// "e" the student form, "t" the tutor-side reviewer (boss or teacher) and
// "m" the monitor-side reviewer (monitor or coordinator). A zero or missing
// code disables the role for the campaign.
func ParseFormCodes(spec string, kind Kind) map[Role]int {
	codes := make(map[Role]int, 3)
	for _, part := range strings.Split(spec, ";") {
		marker, val, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		code, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || code <= 0 {
			continue
		}
		if role, ok := markerRole(strings.TrimSpace(marker), kind); ok {
			codes[role] = code
		}
	}
	return codes
}

func markerRole(marker string, kind Kind) (Role, bool) {
	monitoring := kind == KindMonitoring
	switch marker {
	case "e":
		return RoleStudent, true
	case "t":
		if monitoring {
			return RoleTeacher, true
		}
		return RoleBoss, true
	case "m":
		if monitoring {
			return RoleCoordinator, true
		}
		return RoleMonitor, true
	}
	return "", false
}
