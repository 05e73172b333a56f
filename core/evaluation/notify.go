package evaluation

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
)

// SendReport summarizes one invitation dispatch.
type SendReport struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// invitationTemplates maps each form audience to its email template pair
// under assets/templates/email.
var invitationTemplates = map[survey.FormKey]string{
	survey.FormStudent: "invitation-student",
	survey.FormTutor:   "invitation-tutor",
	survey.FormMonitor: "invitation-monitor",
}

type invitationData struct {
	StudentName    string
	TutorName      string
	MonitorName    string
	ProgramName    string
	EvaluationName string
	FinishDate     string
	Link           string
}

// SendInvitations mails every pending (unused, unexpired) token its respond
// link and advances the campaign to SENT only if at least one send landed.
// An empty recipient set and a fully failed dispatch are distinct outcomes:
// the first leaves the status untouched, the second records EMAIL FAILED.
func (svc *Service) SendInvitations(ctx context.Context, id string) (SendReport, error) {
	ev, err := svc.repo.GetEvaluation(ctx, id)
	if err != nil {
		return SendReport{}, err
	}
	tokens, err := svc.repo.GetTokensByEvaluation(ctx, ev.ID)
	if err != nil {
		return SendReport{}, errors.Wrap(err, "loading tokens")
	}

	now := svc.now()
	var pending []AccessToken
	legIDs := make([]int, 0, len(tokens))
	for _, t := range tokens {
		if t.Used || t.Expired(now) || t.Email == "" {
			continue
		}
		pending = append(pending, t)
		legIDs = append(legIDs, t.LegalizationID)
	}
	if len(pending) == 0 {
		return SendReport{}, ErrNothingToSend
	}

	names, err := svc.academic.GetParticipantNames(ctx, ev.Kind, legIDs)
	if err != nil {
		svc.log.Error("participant name lookup failed, sending without names", "evaluation", ev.ID, "err", err)
		names = map[int]ParticipantNames{}
	}

	var report SendReport
	for _, t := range pending {
		key, ok := FormKeyFor(ev.Kind, t.Role)
		if !ok {
			continue
		}
		n := names[t.LegalizationID]
		recipient := n.StudentName
		switch key {
		case survey.FormTutor:
			recipient = n.TutorName
		case survey.FormMonitor:
			recipient = n.MonitorName
		}
		msg := &core.EmailMessage{
			To:           []mail.Address{{Name: recipient, Address: t.Email}},
			Subject:      fmt.Sprintf("%s - %s", core.Conf.AppName, ev.Name),
			TemplateName: invitationTemplates[key],
			TemplateData: invitationData{
				StudentName:    n.StudentName,
				TutorName:      n.TutorName,
				MonitorName:    n.MonitorName,
				ProgramName:    n.ProgramName,
				EvaluationName: ev.Name,
				FinishDate:     ev.FinishDate.Format("2006-01-02"),
				Link:           t.Link,
			},
		}
		if err := svc.mailSvc.SendMessage(msg); err != nil {
			svc.log.Error("invitation send failed", "evaluation", ev.ID, "email", t.Email, "err", err)
			report.Failed++
			continue
		}
		report.Sent++
	}

	if report.Sent == 0 {
		if err := svc.repo.SetDispatched(ctx, ev.ID, ev.Status, EmailFailed, now); err != nil {
			svc.log.Error("recording failed dispatch", "evaluation", ev.ID, "err", err)
		}
		return report, ErrAllSendsFailed
	}

	emailStatus := EmailSent
	if report.Failed > 0 {
		emailStatus = EmailPartial
	}
	if err := svc.repo.SetDispatched(ctx, ev.ID, StatusSent, emailStatus, now); err != nil {
		return report, errors.Wrap(err, "recording dispatch")
	}
	if ev.SourceID != 0 {
		if err := svc.academic.UpdateStatus(ctx, ev.SourceID, StatusSent, emailStatus); err != nil {
			svc.log.Error("mirroring status to relational store", "evaluation", ev.ID, "err", err)
		}
	}
	return report, nil
}
