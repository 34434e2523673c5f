package user

import (
	"github.com/denis-rodionov/school-trainer-sub000/core"
)

// serviceMock behaves like the real service except that password reset
// mails go out synchronously, so tests can assert on the mail right away.
type serviceMock struct {
	service
}

func NewServiceMock(repo Repository, mailSvc core.EmailService) Service {
	return &serviceMock{service{repo: repo, mailSvc: mailSvc}}
}

func (svc *serviceMock) RequestPasswordReset(email string) error {
	usr, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr) // synchronous
	return nil
}
