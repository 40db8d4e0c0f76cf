// Package invite provisions accounts for new team members and mails them
// a link to choose a password.
package invite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sadopc/opsdeck/internal/store"
)

// ErrAlreadyRegistered is returned when the invited email has an account.
var ErrAlreadyRegistered = errors.New("user already registered")

// Message is one outgoing invitation email.
type Message struct {
	To         string
	Subject    string
	Body       string
	ResetToken string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	Log logrus.FieldLogger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	m.Log.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject}).Info(msg.Body)
	return nil
}

// Store is the part of the store the service writes to.
type Store interface {
	CreateInvitation(sess *store.Session, email string, role store.Role) (*store.Invitation, error)
	SetInvitationStatus(id int64, status string) error
	UserByEmail(email string) (*store.User, error)
	Register(email, password, fullName string, role store.Role) (*store.User, error)
	CreatePasswordReset(userID int64, ttl time.Duration) (string, error)
}

type Service struct {
	store    Store
	mailer   Mailer
	resetTTL time.Duration
	log      logrus.FieldLogger
}

func NewService(s Store, mailer Mailer, resetTTL time.Duration, log logrus.FieldLogger) *Service {
	return &Service{store: s, mailer: mailer, resetTTL: resetTTL, log: log}
}

// Invite records the invitation, creates the user with an unusable random
// password, and mails a password reset token. The invitation ends up
// "sent" or "failed".
func (s *Service) Invite(ctx context.Context, sess *store.Session, email string, role store.Role) (*store.User, error) {
	const op = "invite.Service.Invite"
	log := s.log.WithFields(logrus.Fields{"operation": op, "email": email})

	inv, err := s.store.CreateInvitation(sess, email, role)
	if err != nil {
		return nil, err
	}

	user, err := s.provision(ctx, inv)
	status := "sent"
	if err != nil {
		status = "failed"
		log.WithError(err).Warn("invitation failed")
	}
	if serr := s.store.SetInvitationStatus(inv.ID, status); serr != nil {
		log.WithError(serr).Error("update invitation status")
	}
	if err != nil {
		return nil, err
	}
	log.WithField("user_id", user.ID).Info("user invited")
	return user, nil
}

func (s *Service) provision(ctx context.Context, inv *store.Invitation) (*store.User, error) {
	if _, err := s.store.UserByEmail(inv.Email); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	user, err := s.store.Register(inv.Email, uuid.NewString(), "", inv.Role)
	if err != nil {
		return nil, err
	}
	token, err := s.store.CreatePasswordReset(user.ID, s.resetTTL)
	if err != nil {
		return nil, err
	}
	msg := Message{
		To:         inv.Email,
		Subject:    "You have been invited to opsdeck",
		Body:       fmt.Sprintf("Press ctrl+t on the opsdeck sign-in screen and enter this token to choose a password: %s", token),
		ResetToken: token,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send invitation: %w", err)
	}
	return user, nil
}
