package evaluation

import (
	"time"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
)

// NewServiceMock returns a Service with an injectable clock for tests.
func NewServiceMock(
	repo Repository,
	academic AcademicRepository,
	surveys SurveyResolver,
	mailSvc core.EmailService,
	log core.Logger,
	now func() time.Time,
) *Service {
	svc := NewService(repo, academic, surveys, mailSvc, log)
	svc.now = now
	return svc
}
