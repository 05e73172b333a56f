package echoapi

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
	"github.com/JoinupRosario/evaluacionesUAOback/services/email/dummy"
	"github.com/JoinupRosario/evaluacionesUAOback/services/logger"
	"github.com/JoinupRosario/evaluacionesUAOback/storage/document/inmem"
)

type httpErr struct {
	Error string `json:"error"`
}

type testApp struct {
	server   Server
	repo     evaluation.Repository
	academic *inmemdoc.AcademicRepository
	mail     *dummymail.Service
}

func initTestApp() (*testApp, error) {
	core.TestConfig()

	db, err := inmemdoc.Open()
	if err != nil {
		return nil, err
	}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	repo := inmemdoc.NewEvaluationRepository(db)
	academic := inmemdoc.NewAcademicRepository()
	surveySvc := survey.NewService(inmemdoc.NewSurveyRepository(db), logger)
	mail := dummymail.NewService()
	evalSvc := evaluation.NewServiceMock(repo, academic, surveySvc, mail, logger,
		func() time.Time { return time.Now().UTC() })

	server := NewServer(&Options{
		Address:        ":0",
		DisableReqLogs: true,
		EvaluationSvc:  evalSvc,
		SurveySvc:      surveySvc,
		Logger:         logger,
	})
	return &testApp{server: server, repo: repo, academic: academic, mail: mail}, nil
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}
