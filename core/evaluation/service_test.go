package evaluation_test

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
	"github.com/JoinupRosario/evaluacionesUAOback/services/email/dummy"
	"github.com/JoinupRosario/evaluacionesUAOback/services/logger"
	"github.com/JoinupRosario/evaluacionesUAOback/storage/document/inmem"
)

const surveyItemID = 501

func TestMain(m *testing.M) {
	core.TestConfig()
	m.Run()
}

type fixture struct {
	svc      *evaluation.Service
	repo     evaluation.Repository
	academic *inmemdoc.AcademicRepository
	mail     *dummymail.Service
	now      *time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := inmemdoc.Open()
	if err != nil {
		t.Fatal(err)
	}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	repo := inmemdoc.NewEvaluationRepository(db)
	academic := inmemdoc.NewAcademicRepository()
	surveySvc := survey.NewService(inmemdoc.NewSurveyRepository(db), logger)
	mail := dummymail.NewService()

	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	f := &fixture{
		repo:     repo,
		academic: academic,
		mail:     mail,
		now:      &now,
	}
	f.svc = evaluation.NewServiceMock(repo, academic, surveySvc, mail, logger,
		func() time.Time { return *f.now })

	// a survey carrying the three practice forms
	_, err = surveySvc.Create(context.Background(), survey.NewDefinition{
		SourceItemID: surveyItemID,
		Name:         "Evaluación de prácticas",
		Forms: map[survey.FormKey]survey.Form{
			survey.FormStudent: {Code: 2001, Questions: []survey.Question{
				{ID: "s2", Order: 2, Text: "Comentarios", Type: survey.QuestionTextarea},
				{ID: "s1", Order: 1, Text: "¿Cómo califica su práctica?", Type: survey.QuestionScale, Scale: &survey.ScaleBounds{Min: 1, Max: 5}},
			}},
			survey.FormTutor: {Code: 2002, Questions: []survey.Question{
				{ID: "t1", Order: 1, Text: "Desempeño del estudiante", Type: survey.QuestionScale, Scale: &survey.ScaleBounds{Min: 1, Max: 5}},
			}},
			survey.FormMonitor: {Code: 2003, Questions: []survey.Question{
				{ID: "m1", Order: 1, Text: "Seguimiento realizado", Type: survey.QuestionMultipleChoice, Options: []string{"1", "2", "3"}},
			}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	academic.SeedFormCodeSpec(surveyItemID, "e:2001;t:2002;m:2003")
	academic.SeedParticipants(evaluation.KindPractice, evaluation.RoleStudent,
		evaluation.ParticipantRef{LegalizationID: 1, Email: "s1@uao.edu.co"},
		evaluation.ParticipantRef{LegalizationID: 2, Email: "s2@uao.edu.co"},
		evaluation.ParticipantRef{LegalizationID: 3, Email: "s3@uao.edu.co"},
	)
	academic.SeedParticipants(evaluation.KindPractice, evaluation.RoleBoss,
		evaluation.ParticipantRef{LegalizationID: 1, Email: "boss1@acme.co"},
		evaluation.ParticipantRef{LegalizationID: 2, Email: "boss2@acme.co"},
	)
	academic.SeedParticipants(evaluation.KindPractice, evaluation.RoleMonitor,
		evaluation.ParticipantRef{LegalizationID: 1, Email: "mon1@uao.edu.co", Variant: evaluation.VariantMonitorPrimary},
		evaluation.ParticipantRef{LegalizationID: 1, Email: "mon2@uao.edu.co", Variant: evaluation.VariantMonitorSecondary},
		evaluation.ParticipantRef{LegalizationID: 2, Email: "mon1@uao.edu.co", Variant: evaluation.VariantMonitorPrimary},
	)
	for i, names := range []evaluation.ParticipantNames{
		{StudentName: "Ana Pérez", TutorName: "Carlos Ruiz", MonitorName: "Luz Gómez", ProgramName: "Ingeniería Informática"},
		{StudentName: "Juan Díaz", TutorName: "María López", MonitorName: "Luz Gómez", ProgramName: "Ingeniería Informática"},
		{StudentName: "Sofía Mora", TutorName: "", MonitorName: "", ProgramName: "Comunicación Social"},
	} {
		academic.SeedNames(i+1, names)
	}
	return f
}

func (f *fixture) createEvaluation(t *testing.T) evaluation.Evaluation {
	t.Helper()
	ev, err := f.svc.Create(context.Background(), evaluation.NewEvaluation{
		Name:       "Evaluación prácticas 2026-1",
		Period:     20261,
		Kind:       evaluation.KindPractice,
		SurveyRef:  surveyItemID,
		FinishDate: f.now.Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("creating evaluation: %v", err)
	}
	return ev
}

func (f *fixture) tokenFor(t *testing.T, evalID string, legID int, role evaluation.Role, variant evaluation.Variant) evaluation.AccessToken {
	t.Helper()
	tokens, err := f.repo.GetTokensByEvaluation(context.Background(), evalID)
	if err != nil {
		t.Fatal(err)
	}
	for _, tok := range tokens {
		if tok.LegalizationID == legID && tok.Role == role && tok.Variant == variant {
			return tok
		}
	}
	t.Fatalf("no token for leg=%d role=%s variant=%q", legID, role, variant)
	return evaluation.AccessToken{}
}

func TestCreateEvaluation(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)

	if ev.Status != evaluation.StatusCreated {
		t.Errorf("status = %s, want %s", ev.Status, evaluation.StatusCreated)
	}
	if ev.EmailStatus != evaluation.EmailNotSent {
		t.Errorf("email status = %s, want %s", ev.EmailStatus, evaluation.EmailNotSent)
	}
	wantCodes := map[evaluation.Role]int{
		evaluation.RoleStudent: 2001,
		evaluation.RoleBoss:    2002,
		evaluation.RoleMonitor: 2003,
	}
	for role, want := range wantCodes {
		if got := ev.FormCodes[role]; got != want {
			t.Errorf("form code for %s = %d, want %d", role, got, want)
		}
	}
	if ev.Totals[evaluation.RoleStudent] != 3 || ev.Totals[evaluation.RoleBoss] != 2 || ev.Totals[evaluation.RoleMonitor] != 3 {
		t.Errorf("totals = %v", ev.Totals)
	}
	if ev.SourceID == 0 {
		t.Error("evaluation was not mirrored to the relational store")
	}

	tokens, err := f.repo.GetTokensByEvaluation(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tokens) != 8 {
		t.Fatalf("got %d tokens, want 8", len(tokens))
	}
	secrets := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if len(tok.Secret) != 64 {
			t.Errorf("secret length = %d, want 64 hex chars", len(tok.Secret))
		}
		if secrets[tok.Secret] {
			t.Error("duplicate secret minted")
		}
		secrets[tok.Secret] = true
		if !strings.Contains(tok.Link, "/responder-evaluacion/"+tok.Secret) {
			t.Errorf("link %q does not embed the secret", tok.Link)
		}
		if tok.Used {
			t.Error("fresh token is marked used")
		}
		if want := f.now.Add(core.Conf.TokenExpiration); !tok.ExpiresAt.Equal(want) {
			t.Errorf("expiry = %v, want %v", tok.ExpiresAt, want)
		}
	}
}

func TestRefreshEligibilityIsIdempotent(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)
	before := f.tokenFor(t, ev.ID, 1, evaluation.RoleStudent, evaluation.VariantNone)

	report, err := f.svc.RefreshEligibility(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if report.TokensMinted != 0 {
		t.Errorf("second refresh minted %d tokens, want 0", report.TokensMinted)
	}

	after := f.tokenFor(t, ev.ID, 1, evaluation.RoleStudent, evaluation.VariantNone)
	if after.Secret != before.Secret {
		t.Error("refresh replaced the secret of an existing token")
	}
}

func TestRefreshUpdatesUnusedContactOnly(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)

	// student 2 consumes their token, student 1 changes email
	usedTok := f.tokenFor(t, ev.ID, 2, evaluation.RoleStudent, evaluation.VariantNone)
	if _, err := f.svc.Submit(context.Background(), usedTok.Secret,
		[]byte(`[{"question_id":"s1","closed_answer":"5"}]`)); err != nil {
		t.Fatal(err)
	}
	f.academic.SeedParticipants(evaluation.KindPractice, evaluation.RoleStudent,
		evaluation.ParticipantRef{LegalizationID: 1, Email: "nuevo1@uao.edu.co"},
		evaluation.ParticipantRef{LegalizationID: 2, Email: "nuevo2@uao.edu.co"},
		evaluation.ParticipantRef{LegalizationID: 3, Email: "s3@uao.edu.co"},
	)

	if _, err := f.svc.RefreshEligibility(context.Background(), ev.ID); err != nil {
		t.Fatal(err)
	}

	fresh := f.tokenFor(t, ev.ID, 1, evaluation.RoleStudent, evaluation.VariantNone)
	if fresh.Email != "nuevo1@uao.edu.co" {
		t.Errorf("unused token email = %s, want refreshed", fresh.Email)
	}
	if fresh.Secret == "" || fresh.Used {
		t.Error("contact refresh must not reissue or consume the token")
	}

	used := f.tokenFor(t, ev.ID, 2, evaluation.RoleStudent, evaluation.VariantNone)
	if used.Email != "s2@uao.edu.co" {
		t.Errorf("used token email = %s, must never be touched", used.Email)
	}
	if !used.Used {
		t.Error("used token lost its used mark")
	}
}

func TestRefreshWithoutSurveySkipsIssuance(t *testing.T) {
	f := setup(t)
	// campaign referencing a survey item that has codes but no stored definition
	f.academic.SeedFormCodeSpec(999, "e:7001;t:7002;m:7003")

	ev, err := f.svc.Create(context.Background(), evaluation.NewEvaluation{
		Name:       "Sin formulario",
		Period:     20261,
		Kind:       evaluation.KindPractice,
		SurveyRef:  999,
		FinishDate: f.now.Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := f.svc.RefreshEligibility(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !report.IssuanceSkipped {
		t.Error("issuance should be skipped when no survey resolves")
	}
	if report.TokensMinted != 0 {
		t.Errorf("minted %d tokens for an unresolvable survey", report.TokensMinted)
	}
	// the population snapshot still lands
	if report.Totals[evaluation.RoleStudent] != 3 {
		t.Errorf("totals = %v, population refresh must not be skipped", report.Totals)
	}
}

func TestRefreshSkipsRoleOnFormCodeMismatch(t *testing.T) {
	f := setup(t)
	// the item's tutor code does not match any form of the stored survey
	f.academic.SeedFormCodeSpec(surveyItemID, "e:2001;t:2099;m:2003")

	ev := f.createEvaluation(t)

	tokens, err := f.repo.GetTokensByEvaluation(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, tok := range tokens {
		if tok.Role == evaluation.RoleBoss {
			t.Fatal("boss tokens minted although their form code resolves to no questions")
		}
	}
	if len(tokens) != 6 { // 3 students + 3 monitors
		t.Errorf("got %d tokens, want 6", len(tokens))
	}
}

func TestResolveForm(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)
	tok := f.tokenFor(t, ev.ID, 1, evaluation.RoleStudent, evaluation.VariantNone)

	view, err := f.svc.ResolveForm(context.Background(), tok.Secret)
	if err != nil {
		t.Fatal(err)
	}
	if view.Role != evaluation.RoleStudent || view.LegalizationID != 1 || view.FormCode != 2001 {
		t.Errorf("view = %+v", view)
	}
	if len(view.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(view.Questions))
	}
	if view.Questions[0].ID != "s1" || view.Questions[1].ID != "s2" {
		t.Errorf("questions not ordered: %v", view.Questions)
	}

	// opening is free: the token stays spendable
	if _, err = f.svc.ResolveForm(context.Background(), tok.Secret); err != nil {
		t.Errorf("second open failed: %v", err)
	}

	if _, err = f.svc.ResolveForm(context.Background(), "deadbeef"); err != evaluation.ErrTokenNotFound {
		t.Errorf("unknown secret error = %v, want ErrTokenNotFound", err)
	}
}

func TestResolveFormExpired(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)
	tok := f.tokenFor(t, ev.ID, 1, evaluation.RoleStudent, evaluation.VariantNone)

	*f.now = f.now.Add(core.Conf.TokenExpiration + time.Hour)
	// keep the campaign itself open
	finish := f.now.Add(24 * time.Hour)
	if _, err := f.svc.Update(context.Background(), ev.ID, evaluation.UpdateEvaluation{FinishDate: &finish}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.ResolveForm(context.Background(), tok.Secret); err != evaluation.ErrTokenExpired {
		t.Errorf("error = %v, want ErrTokenExpired", err)
	}
}

func TestSubmit(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)
	tok := f.tokenFor(t, ev.ID, 1, evaluation.RoleStudent, evaluation.VariantNone)

	res, err := f.svc.Submit(context.Background(), tok.Secret,
		[]byte(`[{"pregunta_id":"s1","respuesta":4},{"question_id":"s2","respuesta_abierta":"muy buena práctica"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if res.LegalizationID != 1 || res.Role != evaluation.RoleStudent {
		t.Errorf("result = %+v", res)
	}

	recs, err := f.repo.GetResponses(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d response records, want 1", len(recs))
	}
	slot, ok := recs[0].Slots[evaluation.RoleStudent]
	if !ok {
		t.Fatal("student slot missing")
	}
	if len(slot.Answers) != 2 || slot.Answers[0].Closed != "4" || slot.Answers[1].Open != "muy buena práctica" {
		t.Errorf("slot answers = %v", slot.Answers)
	}
	if slot.FormCode != 2001 {
		t.Errorf("slot form code = %d, want 2001", slot.FormCode)
	}
	if slot.Status != evaluation.SlotCompleted {
		t.Errorf("slot status = %q, want %q", slot.Status, evaluation.SlotCompleted)
	}

	// the token is burned
	if _, err = f.svc.Submit(context.Background(), tok.Secret,
		[]byte(`[{"question_id":"s1","closed_answer":"1"}]`)); err != evaluation.ErrTokenUsed {
		t.Errorf("resubmit error = %v, want ErrTokenUsed", err)
	}
	if _, err = f.svc.ResolveForm(context.Background(), tok.Secret); err != evaluation.ErrTokenUsed {
		t.Errorf("open after submit error = %v, want ErrTokenUsed", err)
	}
}

func TestSubmitRejectsEmptyAnswers(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)
	tok := f.tokenFor(t, ev.ID, 1, evaluation.RoleStudent, evaluation.VariantNone)

	_, err := f.svc.Submit(context.Background(), tok.Secret, []byte(`[]`))
	if _, ok := err.(*core.ValidationError); !ok {
		t.Fatalf("error = %v, want ValidationError", err)
	}

	// a rejected submission must not consume the token
	if _, err = f.svc.ResolveForm(context.Background(), tok.Secret); err != nil {
		t.Errorf("token consumed by invalid submission: %v", err)
	}
}

func TestSubmitConcurrentSingleWinner(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)
	tok := f.tokenFor(t, ev.ID, 1, evaluation.RoleStudent, evaluation.VariantNone)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), tok.Secret,
				[]byte(`[{"question_id":"s1","closed_answer":"3"}]`))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, used int
	for err := range errs {
		switch err {
		case nil:
			wins++
		case evaluation.ErrTokenUsed:
			used++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("got %d winners, want exactly 1", wins)
	}
	if used != workers-1 {
		t.Errorf("got %d ErrTokenUsed, want %d", used, workers-1)
	}

	recs, err := f.repo.GetResponses(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || len(recs[0].Slots) != 1 {
		t.Errorf("exactly one slot must be written, got %+v", recs)
	}
}

func TestRecountParticipation(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)

	// one of three students submits
	tok := f.tokenFor(t, ev.ID, 1, evaluation.RoleStudent, evaluation.VariantNone)
	if _, err := f.svc.Submit(context.Background(), tok.Secret,
		[]byte(`[{"question_id":"s1","closed_answer":"5"}]`)); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.RecountParticipation(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got[evaluation.RoleStudent] != 33 {
		t.Errorf("student percentage = %d, want 33", got[evaluation.RoleStudent])
	}
	if got[evaluation.RoleBoss] != 0 || got[evaluation.RoleMonitor] != 0 {
		t.Errorf("percentages = %v", got)
	}

	// percentages land on the evaluation and its relational mirror
	stored, err := f.svc.Get(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Percentages[evaluation.RoleStudent] != 33 {
		t.Errorf("stored percentages = %v", stored.Percentages)
	}
	row, ok := f.academic.Row(ev.SourceID)
	if !ok {
		t.Fatal("relational row missing")
	}
	if row.Percentages[evaluation.RoleStudent] != 33 {
		t.Errorf("mirrored percentages = %v", row.Percentages)
	}
}

func TestRecountEmptyPopulation(t *testing.T) {
	f := setup(t)
	f.academic.SeedParticipants(evaluation.KindPractice, evaluation.RoleBoss) // nobody
	ev := f.createEvaluation(t)

	got, err := f.svc.RecountParticipation(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got[evaluation.RoleBoss] != 0 {
		t.Errorf("boss percentage = %d, want 0 for empty population", got[evaluation.RoleBoss])
	}
}

func TestSendInvitations(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)

	report, err := f.svc.SendInvitations(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 8 || report.Failed != 0 {
		t.Errorf("report = %+v, want 8 sent", report)
	}

	stored, err := f.svc.Get(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != evaluation.StatusSent {
		t.Errorf("status = %s, want %s", stored.Status, evaluation.StatusSent)
	}
	if stored.EmailStatus != evaluation.EmailSent {
		t.Errorf("email status = %s, want %s", stored.EmailStatus, evaluation.EmailSent)
	}
	if stored.DateSent == nil {
		t.Error("date sent not recorded")
	}
	row, _ := f.academic.Row(ev.SourceID)
	if row.Status != evaluation.StatusSent {
		t.Errorf("mirrored status = %s", row.Status)
	}
}

func TestSendInvitationsPartialFailure(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)
	f.mail.FailFor["boss1@acme.co"] = true

	report, err := f.svc.SendInvitations(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 7 || report.Failed != 1 {
		t.Errorf("report = %+v", report)
	}

	stored, _ := f.svc.Get(context.Background(), ev.ID)
	if stored.Status != evaluation.StatusSent || stored.EmailStatus != evaluation.EmailPartial {
		t.Errorf("status = %s/%s, want SENT/PARTIAL", stored.Status, stored.EmailStatus)
	}
}

func TestSendInvitationsAllFail(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)
	f.mail.FailAll = true

	_, err := f.svc.SendInvitations(context.Background(), ev.ID)
	if err != evaluation.ErrAllSendsFailed {
		t.Fatalf("error = %v, want ErrAllSendsFailed", err)
	}

	stored, _ := f.svc.Get(context.Background(), ev.ID)
	if stored.Status == evaluation.StatusSent {
		t.Error("status advanced to SENT although nothing was delivered")
	}
	if stored.EmailStatus != evaluation.EmailFailed {
		t.Errorf("email status = %s, want %s", stored.EmailStatus, evaluation.EmailFailed)
	}
}

func TestSendInvitationsNothingToSend(t *testing.T) {
	f := setup(t)
	f.academic.SeedFormCodeSpec(998, "e:7001") // no survey stored, no tokens minted
	ev, err := f.svc.Create(context.Background(), evaluation.NewEvaluation{
		Name:       "Vacía",
		Period:     20261,
		Kind:       evaluation.KindPractice,
		SurveyRef:  998,
		FinishDate: f.now.Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err = f.svc.SendInvitations(context.Background(), ev.ID); err != evaluation.ErrNothingToSend {
		t.Fatalf("error = %v, want ErrNothingToSend", err)
	}
	stored, _ := f.svc.Get(context.Background(), ev.ID)
	if stored.Status == evaluation.StatusSent {
		t.Error("status advanced with nothing to send")
	}
}

func TestUpdateToSentDispatches(t *testing.T) {
	f := setup(t)
	ev := f.createEvaluation(t)

	sent := evaluation.StatusSent
	updated, err := f.svc.Update(context.Background(), ev.ID, evaluation.UpdateEvaluation{Status: &sent})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != evaluation.StatusSent {
		t.Errorf("status = %s, want SENT", updated.Status)
	}
	if len(f.mail.Sent()) != 8 {
		t.Errorf("got %d mails, want 8", len(f.mail.Sent()))
	}
}
