package survey

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
)

var (
	ErrNotFound = errors.New("survey not found")

	_ Servicer = (*Service)(nil)
)

// Repository is the document-store persistence surface for definitions.
type Repository interface {
	CreateDefinition(ctx context.Context, d Definition) (Definition, error)
	UpdateDefinition(ctx context.Context, d Definition) (Definition, error)
	GetDefinition(ctx context.Context, id string) (Definition, error)
	GetDefinitionBySourceItem(ctx context.Context, itemID int) (Definition, error)
	FindDefinitionByFormCode(ctx context.Context, code int) (Definition, error)
	QueryDefinitions(ctx context.Context) ([]Definition, error)
}

type Servicer interface {
	Create(ctx context.Context, nd NewDefinition) (Definition, error)
	Update(ctx context.Context, id string, nd NewDefinition) (Definition, error)
	Get(ctx context.Context, id string) (Definition, error)
	GetBySourceItem(ctx context.Context, itemID int) (Definition, error)
	FindByFormCode(ctx context.Context, code int) (Definition, error)
	Query(ctx context.Context) ([]Definition, error)
}

type Service struct {
	repo Repository
	log  core.Logger
}

func NewService(repo Repository, log core.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (svc *Service) Create(ctx context.Context, nd NewDefinition) (Definition, error) {
	if err := nd.Validate(); err != nil {
		return Definition{}, err
	}
	status := nd.Status
	if status == "" {
		status = StatusActive
	}
	now := time.Now().UTC()
	d := Definition{
		ID:           uuid.NewString(),
		SourceItemID: nd.SourceItemID,
		Name:         nd.Name,
		Description:  nd.Description,
		Status:       status,
		Forms:        nd.Forms,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d, err := svc.repo.CreateDefinition(ctx, d)
	if err != nil {
		return Definition{}, errors.Wrap(err, "creating survey")
	}
	return d, nil
}

func (svc *Service) Update(ctx context.Context, id string, nd NewDefinition) (Definition, error) {
	if err := nd.Validate(); err != nil {
		return Definition{}, err
	}
	d, err := svc.repo.GetDefinition(ctx, id)
	if err != nil {
		return Definition{}, err
	}
	d.SourceItemID = nd.SourceItemID
	d.Name = nd.Name
	d.Description = nd.Description
	if nd.Status != "" {
		d.Status = nd.Status
	}
	d.Forms = nd.Forms
	d.UpdatedAt = time.Now().UTC()
	d, err = svc.repo.UpdateDefinition(ctx, d)
	if err != nil {
		return Definition{}, errors.Wrap(err, "updating survey")
	}
	return d, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Definition, error) {
	return svc.repo.GetDefinition(ctx, id)
}

func (svc *Service) GetBySourceItem(ctx context.Context, itemID int) (Definition, error) {
	return svc.repo.GetDefinitionBySourceItem(ctx, itemID)
}

func (svc *Service) FindByFormCode(ctx context.Context, code int) (Definition, error) {
	return svc.repo.FindDefinitionByFormCode(ctx, code)
}

func (svc *Service) Query(ctx context.Context) ([]Definition, error) {
	return svc.repo.QueryDefinitions(ctx)
}
