package inmemdoc

import (
	"sync"

	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
)

// tokenTupleKey mirrors the unique index the document store enforces on
// access tokens.
type tokenTupleKey struct {
	evalID  string
	legID   int
	role    evaluation.Role
	variant evaluation.Variant
}

type responseKey struct {
	evalID string
	legID  int
}

type (
	DB struct {
		evaluations *evaluationTable
		tokens      *tokenTable
		responses   *responseTable
		surveys     *surveyTable
	}

	evaluationTable struct {
		sync.RWMutex
		table map[string]*evaluation.Evaluation
	}

	tokenTable struct {
		sync.RWMutex
		table    map[string]*evaluation.AccessToken
		byTuple  map[tokenTupleKey]string
		bySecret map[string]string
	}

	responseTable struct {
		sync.RWMutex
		table map[responseKey]*evaluation.ResponseRecord
	}

	surveyTable struct {
		sync.RWMutex
		table map[string]*survey.Definition
	}
)

func Open() (*DB, error) {
	db := &DB{
		evaluations: &evaluationTable{table: make(map[string]*evaluation.Evaluation)},
		tokens: &tokenTable{
			table:    make(map[string]*evaluation.AccessToken),
			byTuple:  make(map[tokenTupleKey]string),
			bySecret: make(map[string]string),
		},
		responses: &responseTable{table: make(map[responseKey]*evaluation.ResponseRecord)},
		surveys:   &surveyTable{table: make(map[string]*survey.Definition)},
	}
	return db, nil
}
