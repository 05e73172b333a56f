package dummymail

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
)

// Service records messages instead of sending them, with per-address or
// blanket failure injection for dispatch tests.
type Service struct {
	mu      sync.Mutex
	sent    []core.EmailMessage
	FailAll bool
	FailFor map[string]bool
}

var _ core.EmailService = (*Service)(nil)

func NewService() *Service {
	return &Service{FailFor: make(map[string]bool)}
}

func (svc *Service) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		_ = svc.SendMessage(msg)
	}
}

func (svc *Service) SendMessage(msg *core.EmailMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering email")
	}
	if svc.FailAll {
		return errors.New("send failed")
	}
	for _, to := range msg.To {
		if svc.FailFor[to.Address] {
			return errors.New("send failed")
		}
	}
	svc.mu.Lock()
	svc.sent = append(svc.sent, *msg)
	svc.mu.Unlock()
	return nil
}

func (svc *Service) Sent() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	out := make([]core.EmailMessage, len(svc.sent))
	copy(out, svc.sent)
	return out
}

func (svc *Service) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.sent = nil
}
