package inmemdoc

import (
	"context"

	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
)

type surveyRepository struct {
	surveys *surveyTable
}

var _ survey.Repository = (*surveyRepository)(nil) // interface compliance check

func NewSurveyRepository(db *DB) survey.Repository {
	return &surveyRepository{surveys: db.surveys}
}

func (repo *surveyRepository) CreateDefinition(_ context.Context, d survey.Definition) (survey.Definition, error) {
	repo.surveys.Lock()
	defer repo.surveys.Unlock()

	repo.surveys.table[d.ID] = &d
	return d, nil
}

func (repo *surveyRepository) UpdateDefinition(_ context.Context, d survey.Definition) (survey.Definition, error) {
	repo.surveys.Lock()
	defer repo.surveys.Unlock()

	if _, ok := repo.surveys.table[d.ID]; !ok {
		return survey.Definition{}, survey.ErrNotFound
	}
	repo.surveys.table[d.ID] = &d
	return d, nil
}

func (repo *surveyRepository) GetDefinition(_ context.Context, id string) (survey.Definition, error) {
	repo.surveys.RLock()
	defer repo.surveys.RUnlock()

	d, ok := repo.surveys.table[id]
	if !ok {
		return survey.Definition{}, survey.ErrNotFound
	}
	return *d, nil
}

func (repo *surveyRepository) GetDefinitionBySourceItem(_ context.Context, itemID int) (survey.Definition, error) {
	repo.surveys.RLock()
	defer repo.surveys.RUnlock()

	for _, d := range repo.surveys.table {
		if d.SourceItemID == itemID {
			return *d, nil
		}
	}
	return survey.Definition{}, survey.ErrNotFound
}

func (repo *surveyRepository) FindDefinitionByFormCode(_ context.Context, code int) (survey.Definition, error) {
	repo.surveys.RLock()
	defer repo.surveys.RUnlock()

	for _, d := range repo.surveys.table {
		if d.Status != survey.StatusArchived && d.HasFormCode(code) {
			return *d, nil
		}
	}
	return survey.Definition{}, survey.ErrNotFound
}

func (repo *surveyRepository) QueryDefinitions(_ context.Context) ([]survey.Definition, error) {
	repo.surveys.RLock()
	defer repo.surveys.RUnlock()

	defs := make([]survey.Definition, 0, len(repo.surveys.table))
	for _, d := range repo.surveys.table {
		defs = append(defs, *d)
	}
	return defs, nil
}
