package evaluation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const respondPath = "responder-evaluacion"

// ensureTokens reconciles a role's participant list against its existing
// tokens keyed by (legalization, variant): missing slots get a fresh token,
// unused tokens get their contact fields refreshed, used tokens are never
// touched. The store's unique tuple index absorbs concurrent runs; an insert
// losing that race is not an error.
func (svc *Service) ensureTokens(ctx context.Context, ev Evaluation, role Role, parts []ParticipantRef, formCode int) (int, error) {
	existing, err := svc.repo.GetTokensByRole(ctx, ev.ID, role)
	if err != nil {
		return 0, errors.Wrap(err, "loading existing tokens")
	}
	byKey := make(map[TokenKey]AccessToken, len(existing))
	for _, t := range existing {
		byKey[t.Key()] = t
	}

	now := svc.now()
	var fresh []AccessToken
	var refresh []TokenContactUpdate
	for _, p := range parts {
		key := TokenKey{LegalizationID: p.LegalizationID, Variant: p.Variant}
		t, ok := byKey[key]
		if !ok {
			secret, err := newSecret()
			if err != nil {
				return 0, err
			}
			fresh = append(fresh, AccessToken{
				ID:             uuid.NewString(),
				EvaluationID:   ev.ID,
				LegalizationID: p.LegalizationID,
				Role:           role,
				Variant:        p.Variant,
				Secret:         secret,
				Link:           svc.respondLink(secret),
				Email:          p.Email,
				FormCode:       formCode,
				ExpiresAt:      now.Add(svc.tokenTTL),
				CreatedAt:      now,
			})
			continue
		}
		if t.Used {
			continue
		}
		if t.Email != p.Email || t.FormCode != formCode {
			refresh = append(refresh, TokenContactUpdate{TokenID: t.ID, Email: p.Email, FormCode: formCode})
		}
	}

	var minted int
	if len(fresh) > 0 {
		minted, err = svc.repo.CreateTokens(ctx, fresh)
		if err != nil {
			return 0, errors.Wrap(err, "inserting tokens")
		}
	}
	if len(refresh) > 0 {
		if err := svc.repo.RefreshTokenContacts(ctx, refresh); err != nil {
			return minted, errors.Wrap(err, "refreshing token contacts")
		}
	}
	return minted, nil
}

// newSecret mints a 32-byte hex credential, the only unguessable part of a
// respond link.
func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "generating token secret")
	}
	return hex.EncodeToString(buf), nil
}

func (svc *Service) respondLink(secret string) string {
	return fmt.Sprintf("%s/%s/%s", svc.frontendBaseURL, respondPath, secret)
}
