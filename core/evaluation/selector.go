package evaluation

import "github.com/JoinupRosario/evaluacionesUAOback/core/survey"

// formSelector maps each (role, kind) pair to the survey form that role
// answers. The table is the single source of truth for question resolution;
// every pair a campaign can address must appear here.
var formSelector = map[Kind]map[Role]survey.FormKey{
	KindPractice: {
		RoleStudent: survey.FormStudent,
		RoleBoss:    survey.FormTutor,
		RoleMonitor: survey.FormMonitor,
	},
	KindMonitoring: {
		RoleStudent:     survey.FormStudent,
		RoleTeacher:     survey.FormTutor,
		RoleCoordinator: survey.FormMonitor,
	},
}

// FormKeyFor returns the survey form a role answers within a campaign kind.
func FormKeyFor(kind Kind, role Role) (survey.FormKey, bool) {
	key, ok := formSelector[kind][role]
	return key, ok
}
