package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
)

type academicRepository struct {
	db *sqlx.DB
}

var _ evaluation.AcademicRepository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *sqlx.DB) evaluation.AcademicRepository {
	return &academicRepository{db: db}
}

type participantRow struct {
	LegalizationID int            `db:"legalization_id"`
	Email          sql.NullString `db:"email"`
	Variant        sql.NullString `db:"variant"`
}

// Practice participants come from legalized academic practices. The student
// email prefers the personal one and falls back to the alternate recorded on
// the legalization; bosses and monitors carry their own contact columns.
const (
	practiceStudentsQuery = `
		SELECT apl.id AS legalization_id,
		       COALESCE(NULLIF(u.personal_email, ''), apl.alternate_email) AS email,
		       '' AS variant
		FROM academic_practice_legalized apl
		JOIN users u ON u.id = apl.student_id
		WHERE apl.period = ?
		  AND apl.status NOT IN (?)`

	practiceBossesQuery = `
		SELECT apl.id AS legalization_id,
		       apl.boss_email AS email,
		       '' AS variant
		FROM academic_practice_legalized apl
		WHERE apl.period = ?
		  AND apl.status NOT IN (?)`

	// Each legalization may carry a primary and a secondary monitor; every
	// present one yields its own participant.
	practiceMonitorsQuery = `
		SELECT apl.id AS legalization_id, u.email AS email, 'user_tutor' AS variant
		FROM academic_practice_legalized apl
		JOIN users u ON u.id = apl.monitor_id
		WHERE apl.period = ?
		  AND apl.status NOT IN (?)
		UNION ALL
		SELECT apl.id AS legalization_id, u2.email AS email, 'user_tutor_2' AS variant
		FROM academic_practice_legalized apl
		JOIN users u2 ON u2.id = apl.monitor2_id
		WHERE apl.period = ?
		  AND apl.status NOT IN (?)`

	monitoringStudentsQuery = `
		SELECT ml.id AS legalization_id,
		       COALESCE(NULLIF(u.personal_email, ''), u.email) AS email,
		       '' AS variant
		FROM monitoring_legalized ml
		JOIN users u ON u.id = ml.student_id
		WHERE ml.period = ?
		  AND ml.status NOT IN (?)`

	monitoringTeachersQuery = `
		SELECT ml.id AS legalization_id, u.email AS email, '' AS variant
		FROM monitoring_legalized ml
		JOIN users u ON u.id = ml.teacher_id
		WHERE ml.period = ?
		  AND ml.status NOT IN (?)`

	monitoringCoordinatorsQuery = `
		SELECT ml.id AS legalization_id, u.email AS email, '' AS variant
		FROM monitoring_legalized ml
		JOIN users u ON u.id = ml.coordinator_id
		WHERE ml.period = ?
		  AND ml.status NOT IN (?)`
)

func (repo *academicRepository) QueryParticipants(
	ctx context.Context, kind evaluation.Kind, role evaluation.Role, c evaluation.Criteria,
) ([]evaluation.ParticipantRef, error) {
	query, args, err := buildParticipantsQuery(kind, role, c)
	if err != nil {
		return nil, err
	}

	var rows []participantRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrapf(err, "querying %s participants", role)
	}

	parts := make([]evaluation.ParticipantRef, 0, len(rows))
	for _, r := range rows {
		email := core.CleanString(r.Email.String, true /* lower */)
		if email == "" {
			continue
		}
		parts = append(parts, evaluation.ParticipantRef{
			LegalizationID: r.LegalizationID,
			Email:          email,
			Variant:        evaluation.Variant(r.Variant.String),
		})
	}
	return parts, nil
}

func buildParticipantsQuery(kind evaluation.Kind, role evaluation.Role, c evaluation.Criteria) (string, []interface{}, error) {
	var base string
	monitors := false
	switch {
	case kind == evaluation.KindPractice && role == evaluation.RoleStudent:
		base = practiceStudentsQuery
	case kind == evaluation.KindPractice && role == evaluation.RoleBoss:
		base = practiceBossesQuery
	case kind == evaluation.KindPractice && role == evaluation.RoleMonitor:
		base = practiceMonitorsQuery
		monitors = true
	case kind == evaluation.KindMonitoring && role == evaluation.RoleStudent:
		base = monitoringStudentsQuery
	case kind == evaluation.KindMonitoring && role == evaluation.RoleTeacher:
		base = monitoringTeachersQuery
	case kind == evaluation.KindMonitoring && role == evaluation.RoleCoordinator:
		base = monitoringCoordinatorsQuery
	default:
		return "", nil, errors.Errorf("no eligibility query for %s/%s", kind, role)
	}

	args := []interface{}{c.Period, c.ExcludedStatuses}
	if monitors {
		// UNION halves repeat the base arguments.
		args = append(args, c.Period, c.ExcludedStatuses)
	}
	query := base
	if kind == evaluation.KindPractice {
		query, args = appendPracticeFilters(query, args, c, monitors)
	} else {
		query, args = appendMonitoringFilters(query, args, c)
	}
	return sqlx.In(query, args...)
}

// appendPracticeFilters narrows by practice type and program. The UNION in
// the monitors query makes per-branch suffixing impossible, so filtered
// monitor queries wrap the union instead.
func appendPracticeFilters(query string, args []interface{}, c evaluation.Criteria, monitors bool) (string, []interface{}) {
	var cond string
	var condArgs []interface{}
	if c.PracticeType != 0 {
		cond += " AND practice_type_id = ?"
		condArgs = append(condArgs, c.PracticeType)
	}
	if len(c.ProgramIDs) > 0 {
		cond += " AND program_id IN (?)"
		condArgs = append(condArgs, c.ProgramIDs)
	}
	if cond == "" {
		return query, args
	}
	if monitors {
		query = `SELECT legalization_id, email, variant FROM (` + query + `) m
			WHERE legalization_id IN (
				SELECT id FROM academic_practice_legalized WHERE 1=1` + cond + `)`
	} else {
		query += cond
	}
	return query, append(args, condArgs...)
}

func appendMonitoringFilters(query string, args []interface{}, c evaluation.Criteria) (string, []interface{}) {
	if len(c.CategoryIDs) > 0 {
		query += " AND ml.category_id IN (?)"
		args = append(args, c.CategoryIDs)
	}
	if len(c.ProgramIDs) > 0 {
		query += " AND ml.program_id IN (?)"
		args = append(args, c.ProgramIDs)
	}
	return query, args
}

type namesRow struct {
	LegalizationID int            `db:"legalization_id"`
	StudentName    sql.NullString `db:"student_name"`
	TutorName      sql.NullString `db:"tutor_name"`
	MonitorName    sql.NullString `db:"monitor_name"`
	ProgramName    sql.NullString `db:"program_name"`
}

const (
	practiceNamesQuery = `
		SELECT apl.id AS legalization_id,
		       CONCAT(u.first_name, ' ', u.last_name) AS student_name,
		       apl.boss_name AS tutor_name,
		       CONCAT(m.first_name, ' ', m.last_name) AS monitor_name,
		       p.name AS program_name
		FROM academic_practice_legalized apl
		JOIN users u ON u.id = apl.student_id
		LEFT JOIN users m ON m.id = apl.monitor_id
		LEFT JOIN programs p ON p.id = apl.program_id
		WHERE apl.id IN (?)`

	monitoringNamesQuery = `
		SELECT ml.id AS legalization_id,
		       CONCAT(u.first_name, ' ', u.last_name) AS student_name,
		       CONCAT(t.first_name, ' ', t.last_name) AS tutor_name,
		       CONCAT(c.first_name, ' ', c.last_name) AS monitor_name,
		       p.name AS program_name
		FROM monitoring_legalized ml
		JOIN users u ON u.id = ml.student_id
		LEFT JOIN users t ON t.id = ml.teacher_id
		LEFT JOIN users c ON c.id = ml.coordinator_id
		LEFT JOIN programs p ON p.id = ml.program_id
		WHERE ml.id IN (?)`
)

func (repo *academicRepository) GetParticipantNames(
	ctx context.Context, kind evaluation.Kind, legalizationIDs []int,
) (map[int]evaluation.ParticipantNames, error) {
	if len(legalizationIDs) == 0 {
		return map[int]evaluation.ParticipantNames{}, nil
	}

	base := practiceNamesQuery
	if kind == evaluation.KindMonitoring {
		base = monitoringNamesQuery
	}
	query, args, err := sqlx.In(base, legalizationIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building names query")
	}

	var rows []namesRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying participant names")
	}

	names := make(map[int]evaluation.ParticipantNames, len(rows))
	for _, r := range rows {
		names[r.LegalizationID] = evaluation.ParticipantNames{
			StudentName: r.StudentName.String,
			TutorName:   r.TutorName.String,
			MonitorName: r.MonitorName.String,
			ProgramName: r.ProgramName.String,
		}
	}
	return names, nil
}

func (repo *academicRepository) GetFormCodeSpec(ctx context.Context, itemID int) (string, error) {
	var spec sql.NullString
	err := repo.db.GetContext(ctx, &spec,
		repo.db.Rebind(`SELECT value_for_reports FROM items WHERE id = ?`), itemID)
	if err == sql.ErrNoRows {
		return "", evaluation.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "fetching form code spec")
	}
	return spec.String, nil
}

func (repo *academicRepository) CreateEvaluationRow(ctx context.Context, ev evaluation.Evaluation) (int, error) {
	var id int
	err := repo.db.GetContext(ctx, &id, repo.db.Rebind(`
		INSERT INTO evaluations (name, period, kind, status, email_status, start_date, finish_date, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		ev.Name, ev.Period, ev.Kind, ev.Status, ev.EmailStatus, ev.StartDate, ev.FinishDate, ev.CreatedBy,
	)
	if err != nil {
		return 0, errors.Wrap(err, "inserting evaluation row")
	}
	return id, nil
}

// The relational row carries three fixed aggregate columns per measure; the
// campaign's roles map onto them by audience: the evaluated student, the
// tutor-side reviewer and the monitor-side reviewer.
func roleTriple(vals map[evaluation.Role]int) (student, tutor, monitor int) {
	student = vals[evaluation.RoleStudent]
	tutor = vals[evaluation.RoleBoss] + vals[evaluation.RoleTeacher]
	monitor = vals[evaluation.RoleMonitor] + vals[evaluation.RoleCoordinator]
	return
}

func (repo *academicRepository) UpdateTotals(ctx context.Context, sourceID int, totals map[evaluation.Role]int) error {
	s, t, m := roleTriple(totals)
	_, err := repo.db.ExecContext(ctx, repo.db.Rebind(`
		UPDATE evaluations
		SET total_students = ?, total_tutors = ?, total_monitors = ?, updated_at = NOW()
		WHERE id = ?`),
		s, t, m, sourceID,
	)
	return errors.Wrap(err, "updating totals")
}

func (repo *academicRepository) UpdatePercentages(ctx context.Context, sourceID int, percentages map[evaluation.Role]int) error {
	s, t, m := roleTriple(percentages)
	_, err := repo.db.ExecContext(ctx, repo.db.Rebind(`
		UPDATE evaluations
		SET percentage_students = ?, percentage_tutors = ?, percentage_monitors = ?, updated_at = NOW()
		WHERE id = ?`),
		s, t, m, sourceID,
	)
	return errors.Wrap(err, "updating percentages")
}

func (repo *academicRepository) UpdateStatus(
	ctx context.Context, sourceID int, status evaluation.Status, emailStatus evaluation.EmailStatus,
) error {
	_, err := repo.db.ExecContext(ctx, repo.db.Rebind(`
		UPDATE evaluations
		SET status = ?, email_status = ?, date_sent = NOW(), updated_at = NOW()
		WHERE id = ?`),
		status, emailStatus, sourceID,
	)
	return errors.Wrap(err, "updating status")
}
