package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nandanugg/schoolbus-tracker/module/tracking/domain"
)

func TestGetStudentAssignment_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"roll_no", "name", "name", "reg_no", "estimated_time_min"}).
		AddRow("STU12345", "Aarav Reddy", "Madhapur", "BUS101", 25)

	mock.ExpectQuery(`SELECT s.roll_no, s.name, r.name, v.reg_no, r.estimated_time_min FROM student s (.+) WHERE s.roll_no = (.+)`).
		WithArgs("STU12345").
		WillReturnRows(rows)

	repo := NewStudentRepo(db)
	a, err := repo.GetStudentAssignment(context.Background(), "STU12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.VehicleID != "BUS101" || a.Name != "Aarav Reddy" || a.RouteName != "Madhapur" {
		t.Errorf("unexpected assignment %+v", a)
	}
	if a.EstimatedMinutes == nil || *a.EstimatedMinutes != 25 {
		t.Errorf("expected 25 minutes, got %v", a.EstimatedMinutes)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetStudentAssignment_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT s.roll_no`).
		WithArgs("STU00000").
		WillReturnRows(sqlmock.NewRows([]string{"roll_no", "name", "name", "reg_no", "estimated_time_min"}))

	repo := NewStudentRepo(db)
	_, err = repo.GetStudentAssignment(context.Background(), "STU00000")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetStudentAssignment_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT s.roll_no`).WillReturnError(sqlmock.ErrCancelled)

	repo := NewStudentRepo(db)
	_, err = repo.GetStudentAssignment(context.Background(), "STU12345")
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected query error, got %v", err)
	}
}
