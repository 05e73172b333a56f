package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
)

func seedPractice(t *testing.T, app *testApp) {
	t.Helper()

	surveyBody, _ := json.Marshal(survey.NewDefinition{
		SourceItemID: 501,
		Name:         "Evaluación de prácticas",
		Forms: map[survey.FormKey]survey.Form{
			survey.FormStudent: {Code: 2001, Questions: []survey.Question{
				{ID: "s1", Order: 1, Text: "¿Cómo califica su práctica?", Type: survey.QuestionScale, Scale: &survey.ScaleBounds{Min: 1, Max: 5}},
			}},
			survey.FormTutor: {Code: 2002, Questions: []survey.Question{
				{ID: "t1", Order: 1, Text: "Desempeño del estudiante", Type: survey.QuestionTextarea},
			}},
		},
	})
	req, rec := newRequest(http.MethodPost, "/v1/surveys", surveyBody)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("seeding survey: %d %s", rec.Code, rec.Body.String())
	}

	app.academic.SeedFormCodeSpec(501, "e:2001;t:2002")
	app.academic.SeedParticipants(evaluation.KindPractice, evaluation.RoleStudent,
		evaluation.ParticipantRef{LegalizationID: 1, Email: "s1@uao.edu.co"},
		evaluation.ParticipantRef{LegalizationID: 2, Email: "s2@uao.edu.co"},
	)
	app.academic.SeedParticipants(evaluation.KindPractice, evaluation.RoleBoss,
		evaluation.ParticipantRef{LegalizationID: 1, Email: "boss1@acme.co"},
	)
	app.academic.SeedNames(1, evaluation.ParticipantNames{StudentName: "Ana Pérez", ProgramName: "Ingeniería"})
}

func createEvaluation(t *testing.T, app *testApp) evaluation.Evaluation {
	t.Helper()

	body, _ := json.Marshal(evaluation.NewEvaluation{
		Name:       "Prácticas 2026-1",
		Period:     20261,
		Kind:       evaluation.KindPractice,
		SurveyRef:  501,
		FinishDate: time.Now().UTC().Add(30 * 24 * time.Hour),
	})
	req, rec := newRequest(http.MethodPost, "/v1/evaluations", body)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating evaluation: %d %s", rec.Code, rec.Body.String())
	}
	var ev evaluation.Evaluation
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestEvaluationAPICreate(t *testing.T) {
	app, err := initTestApp()
	if err != nil {
		t.Fatal(err)
	}
	seedPractice(t, app)

	ev := createEvaluation(t, app)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, evaluation.StatusCreated, ev.Status)
	assert.Equal(t, 2, ev.Totals[evaluation.RoleStudent])
	assert.Equal(t, 1, ev.Totals[evaluation.RoleBoss])

	// missing required fields
	req, rec := newRequest(http.MethodPost, "/v1/evaluations", []byte(`{"kind":"PRACTICE"}`))
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluationAPIRetrieve(t *testing.T) {
	app, err := initTestApp()
	if err != nil {
		t.Fatal(err)
	}
	seedPractice(t, app)
	ev := createEvaluation(t, app)

	req, rec := newRequest(http.MethodGet, "/v1/evaluations/"+ev.ID)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req, rec = newRequest(http.MethodGet, "/v1/evaluations/nope")
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var herr httpErr
	_ = json.Unmarshal(rec.Body.Bytes(), &herr)
	assert.Equal(t, "evaluation not found", herr.Error)
}

func TestEvaluationAPIQuery(t *testing.T) {
	app, err := initTestApp()
	if err != nil {
		t.Fatal(err)
	}
	seedPractice(t, app)
	createEvaluation(t, app)

	req, rec := newRequest(http.MethodGet, "/v1/evaluations?kind=PRACTICE&period=20261")
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var evs []evaluation.Evaluation
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &evs))
	assert.Len(t, evs, 1)

	req, rec = newRequest(http.MethodGet, "/v1/evaluations?kind=MONITORING")
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	evs = nil
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &evs))
	assert.Len(t, evs, 0)
}

func TestRespondAPI(t *testing.T) {
	app, err := initTestApp()
	if err != nil {
		t.Fatal(err)
	}
	seedPractice(t, app)
	ev := createEvaluation(t, app)

	tokens, err := app.repo.GetTokensByRole(context.Background(), ev.ID, evaluation.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) == 0 {
		t.Fatal("no student tokens minted")
	}
	secret := tokens[0].Secret

	// unknown secret
	req, rec := newRequest(http.MethodGet, "/v1/evaluations/respond/deadbeef")
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// open the form
	req, rec = newRequest(http.MethodGet, "/v1/evaluations/respond/"+secret)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var view evaluation.FormView
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, evaluation.RoleStudent, view.Role)
	assert.Len(t, view.Questions, 1)

	// submit, wrapped legacy shape
	body := []byte(`{"answers":[{"pregunta_id":"s1","respuesta":4}]}`)
	req, rec = newRequest(http.MethodPost, "/v1/evaluations/respond/"+secret, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the link is burned
	req, rec = newRequest(http.MethodPost, "/v1/evaluations/respond/"+secret, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var herr httpErr
	_ = json.Unmarshal(rec.Body.Bytes(), &herr)
	assert.Equal(t, "access token already used", herr.Error)

	req, rec = newRequest(http.MethodGet, "/v1/evaluations/respond/"+secret)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluationAPISend(t *testing.T) {
	app, err := initTestApp()
	if err != nil {
		t.Fatal(err)
	}
	seedPractice(t, app)
	ev := createEvaluation(t, app)

	req, rec := newRequest(http.MethodPost, "/v1/evaluations/"+ev.ID+"/send")
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report evaluation.SendReport
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Len(t, app.mail.Sent(), 3)

	req, rec = newRequest(http.MethodGet, "/v1/evaluations/"+ev.ID)
	app.server.ServeHTTP(rec, req)
	var stored evaluation.Evaluation
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, evaluation.StatusSent, stored.Status)
	assert.Equal(t, evaluation.EmailSent, stored.EmailStatus)
}

func TestEvaluationAPIRecount(t *testing.T) {
	app, err := initTestApp()
	if err != nil {
		t.Fatal(err)
	}
	seedPractice(t, app)
	ev := createEvaluation(t, app)

	tokens, err := app.repo.GetTokensByRole(context.Background(), ev.ID, evaluation.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	body := []byte(`[{"question_id":"s1","closed_answer":"5"}]`)
	req, rec := newRequest(http.MethodPost, "/v1/evaluations/respond/"+tokens[0].Secret, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req, rec = newRequest(http.MethodPost, "/v1/evaluations/"+ev.ID+"/recount")
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Percentages map[evaluation.Role]int `json:"percentages"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 50, resp.Percentages[evaluation.RoleStudent])
}

func TestSurveyAPI(t *testing.T) {
	app, err := initTestApp()
	if err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(survey.NewDefinition{
		Name: "Monitorías",
		Forms: map[survey.FormKey]survey.Form{
			survey.FormStudent: {Code: 3001, Questions: []survey.Question{{ID: "q1", Order: 1, Text: "¿?", Type: survey.QuestionText}}},
		},
	})
	req, rec := newRequest(http.MethodPost, "/v1/surveys", body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var def survey.Definition
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &def))

	req, rec = newRequest(http.MethodGet, "/v1/surveys/"+def.ID)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// invalid: no forms
	req, rec = newRequest(http.MethodPost, "/v1/surveys", []byte(`{"name":"x"}`))
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req, rec = newRequest(http.MethodGet, "/v1/surveys/nope")
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
