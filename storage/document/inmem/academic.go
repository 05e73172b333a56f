package inmemdoc

import (
	"context"
	"sync"

	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
)

type populationKey struct {
	kind evaluation.Kind
	role evaluation.Role
}

// AcademicRow is the relational mirror of a campaign, kept for assertions.
type AcademicRow struct {
	Evaluation  evaluation.Evaluation
	Totals      map[evaluation.Role]int
	Percentages map[evaluation.Role]int
	Status      evaluation.Status
	EmailStatus evaluation.EmailStatus
}

// AcademicRepository is a seedable stand-in for the relational academic
// records store.
type AcademicRepository struct {
	sync.RWMutex
	participants  map[populationKey][]evaluation.ParticipantRef
	names         map[int]evaluation.ParticipantNames
	formCodeSpecs map[int]string
	rows          map[int]*AcademicRow
	nextID        int
}

var _ evaluation.AcademicRepository = (*AcademicRepository)(nil) // interface compliance check

func NewAcademicRepository() *AcademicRepository {
	return &AcademicRepository{
		participants:  make(map[populationKey][]evaluation.ParticipantRef),
		names:         make(map[int]evaluation.ParticipantNames),
		formCodeSpecs: make(map[int]string),
		rows:          make(map[int]*AcademicRow),
	}
}

func (repo *AcademicRepository) SeedParticipants(kind evaluation.Kind, role evaluation.Role, parts ...evaluation.ParticipantRef) {
	repo.Lock()
	defer repo.Unlock()
	repo.participants[populationKey{kind, role}] = parts
}

func (repo *AcademicRepository) SeedNames(legID int, names evaluation.ParticipantNames) {
	repo.Lock()
	defer repo.Unlock()
	repo.names[legID] = names
}

func (repo *AcademicRepository) SeedFormCodeSpec(itemID int, spec string) {
	repo.Lock()
	defer repo.Unlock()
	repo.formCodeSpecs[itemID] = spec
}

// Row returns the mirrored relational row, if the campaign was synced.
func (repo *AcademicRepository) Row(sourceID int) (AcademicRow, bool) {
	repo.RLock()
	defer repo.RUnlock()
	row, ok := repo.rows[sourceID]
	if !ok {
		return AcademicRow{}, false
	}
	return *row, true
}

func (repo *AcademicRepository) QueryParticipants(
	_ context.Context, kind evaluation.Kind, role evaluation.Role, _ evaluation.Criteria,
) ([]evaluation.ParticipantRef, error) {
	repo.RLock()
	defer repo.RUnlock()

	parts := repo.participants[populationKey{kind, role}]
	out := make([]evaluation.ParticipantRef, len(parts))
	copy(out, parts)
	return out, nil
}

func (repo *AcademicRepository) GetParticipantNames(
	_ context.Context, _ evaluation.Kind, legalizationIDs []int,
) (map[int]evaluation.ParticipantNames, error) {
	repo.RLock()
	defer repo.RUnlock()

	out := make(map[int]evaluation.ParticipantNames, len(legalizationIDs))
	for _, id := range legalizationIDs {
		if n, ok := repo.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (repo *AcademicRepository) GetFormCodeSpec(_ context.Context, itemID int) (string, error) {
	repo.RLock()
	defer repo.RUnlock()

	spec, ok := repo.formCodeSpecs[itemID]
	if !ok {
		return "", evaluation.ErrNotFound
	}
	return spec, nil
}

func (repo *AcademicRepository) CreateEvaluationRow(_ context.Context, ev evaluation.Evaluation) (int, error) {
	repo.Lock()
	defer repo.Unlock()

	repo.nextID++
	repo.rows[repo.nextID] = &AcademicRow{Evaluation: ev, Status: ev.Status, EmailStatus: ev.EmailStatus}
	return repo.nextID, nil
}

func (repo *AcademicRepository) UpdateTotals(_ context.Context, sourceID int, totals map[evaluation.Role]int) error {
	repo.Lock()
	defer repo.Unlock()

	if row, ok := repo.rows[sourceID]; ok {
		row.Totals = totals
	}
	return nil
}

func (repo *AcademicRepository) UpdatePercentages(_ context.Context, sourceID int, percentages map[evaluation.Role]int) error {
	repo.Lock()
	defer repo.Unlock()

	if row, ok := repo.rows[sourceID]; ok {
		row.Percentages = percentages
	}
	return nil
}

func (repo *AcademicRepository) UpdateStatus(
	_ context.Context, sourceID int, status evaluation.Status, emailStatus evaluation.EmailStatus,
) error {
	repo.Lock()
	defer repo.Unlock()

	if row, ok := repo.rows[sourceID]; ok {
		row.Status = status
		row.EmailStatus = emailStatus
	}
	return nil
}
