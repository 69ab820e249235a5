package repositories

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var profileCols = []string{"id", "name", "email", "phone"}

func newSqlxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestSearchByEmail(t *testing.T) {
	db, mock := newSqlxMock(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery("SELECT id, name, email, phone FROM profiles WHERE email ILIKE").
		WithArgs("kim", 10).
		WillReturnRows(sqlmock.NewRows(profileCols).
			AddRow("p1", "Kim A", "kim.a@example.com", "010-1111").
			AddRow("p2", "Kim B", "KIM.b@example.com", nil))

	profiles, err := repo.SearchByEmail(context.Background(), "kim", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("len = %d, want 2", len(profiles))
	}
	if profiles[0].Phone == nil || *profiles[0].Phone != "010-1111" || profiles[1].Phone != nil {
		t.Errorf("phones = %v, %v", profiles[0].Phone, profiles[1].Phone)
	}
}

func TestSearchByEmail_EscapesWildcards(t *testing.T) {
	db, mock := newSqlxMock(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery("FROM profiles").
		WithArgs(`a\_b\%`, 10).
		WillReturnRows(sqlmock.NewRows(profileCols))

	profiles, err := repo.SearchByEmail(context.Background(), "a_b%", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profiles == nil {
		t.Error("expected empty non-nil slice")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSearchByEmail_Error(t *testing.T) {
	db, mock := newSqlxMock(t)
	repo := NewProfileRepository(db)
	mock.ExpectQuery("FROM profiles").WillReturnError(errors.New("timeout"))

	if _, err := repo.SearchByEmail(context.Background(), "kim", 10); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestProfileGetByID(t *testing.T) {
	db, mock := newSqlxMock(t)
	repo := NewProfileRepository(db)
	mock.ExpectQuery("SELECT id, name, email, phone FROM profiles WHERE id").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(profileCols).AddRow("p1", "Kim", "kim@example.com", nil))

	p, err := repo.GetByID(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.Email != "kim@example.com" {
		t.Errorf("profile = %+v", p)
	}
}

func TestProfileGetByID_NotFound(t *testing.T) {
	db, mock := newSqlxMock(t)
	repo := NewProfileRepository(db)
	mock.ExpectQuery("FROM profiles WHERE id").WillReturnRows(sqlmock.NewRows(profileCols))

	p, err := repo.GetByID(context.Background(), "missing")
	if err != nil || p != nil {
		t.Errorf("GetByID() = (%v, %v), want (nil, nil)", p, err)
	}
}
