package testutil

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/trezcool/mitihani/core/exam"
	"github.com/trezcool/mitihani/core/rating"
	"github.com/trezcool/mitihani/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateReferredUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, referralCode, referredBy string,
	createdAt time.Time,
) user.User {
	t.Helper()

	usr := user.User{
		Name:         name,
		Username:     uname,
		Email:        email,
		ReferralCode: referralCode,
		ReferredBy:   referredBy,
		CreatedAt:    createdAt.UTC(),
		UpdatedAt:    createdAt.UTC(),
	}
	usr.SetActive(true)
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateReferredUser(): %v", err)
	}
	return usr
}

func CreateExam(
	t *testing.T,
	svc exam.Service,
	userID, title, course, teacher, cycle string,
) exam.Exam {
	t.Helper()

	ne := exam.NewExam{
		UserID:  userID,
		Title:   title,
		Course:  course,
		Teacher: teacher,
		Cycle:   cycle,
	}
	file := bytes.NewReader([]byte("%PDF-1.4"))
	ex, err := svc.Create(context.Background(), ne, file, title+".pdf", int64(file.Len()), "application/pdf")
	if err != nil {
		t.Fatalf("CreateExam(): %v", err)
	}
	return ex
}

func CreateRating(
	t *testing.T,
	svc rating.Service,
	examID string,
	usr user.User,
	value int,
	comment string,
) rating.Rating {
	t.Helper()

	r, err := svc.Create(context.Background(), rating.NewRating{
		ExamID:    examID,
		UserID:    usr.ID,
		UserName:  usr.Name,
		UserEmail: usr.Email,
		Value:     value,
		Comment:   comment,
	})
	if err != nil {
		t.Fatalf("CreateRating(): %v", err)
	}
	return r
}
