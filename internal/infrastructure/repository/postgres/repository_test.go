package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

// sliceConverter lets []string arguments reach the mock driver the way the
// pgx stdlib driver accepts them.
type sliceConverter struct{}

func (sliceConverter) ConvertValue(v any) (driver.Value, error) {
	if s, ok := v.([]string); ok {
		return s, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newDBWithMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(sliceConverter{}))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return db, mock, func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		_ = db.Close()
	}
}

var testTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

var manuscriptRowColumns = []string{
	"id", "system_id", "submission_id", "custom_id", "title", "abstract", "authors", "journal",
	"article_type", "submission_date", "status", "keywords", "created_at", "updated_at",
}

func manuscriptRow(id, customID string) *sqlmock.Rows {
	return sqlmock.NewRows(manuscriptRowColumns).AddRow(
		id, "", "", customID, "Graphene", "", []byte(`["A. Author","B. Author"]`), "J. Mat",
		"research", nil, "under_review", []byte(`["carbon"]`), testTime, testTime,
	)
}

func TestManuscriptGetByIDReturnsNotFound(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewManuscriptRepository(db)

	mock.ExpectQuery("FROM manuscripts WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManuscriptUpdateStatus(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewManuscriptRepository(db)

	mock.ExpectExec("UPDATE manuscripts").
		WithArgs("ms-1", "under_review", testTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE manuscripts").
		WithArgs("gone", "accepted", testTime).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateStatus(context.Background(), "ms-1", domain.ManuscriptUnderReview, testTime); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	err := repo.UpdateStatus(context.Background(), "gone", domain.ManuscriptAccepted, testTime)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManuscriptResolveFallsBackToInternalID(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewManuscriptRepository(db)

	mock.ExpectQuery("FROM manuscripts WHERE custom_id").
		WithArgs("ms-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("FROM manuscripts WHERE id").
		WithArgs("ms-1").
		WillReturnRows(manuscriptRow("ms-1", "7832738"))

	ms, err := repo.Resolve(context.Background(), "ms-1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if ms.ID != "ms-1" || ms.Status != domain.ManuscriptUnderReview {
		t.Fatalf("unexpected manuscript %+v", ms)
	}
	if diff := cmp.Diff([]string{"A. Author", "B. Author"}, ms.Authors); diff != "" {
		t.Fatalf("authors mismatch (-want +got):\n%s", diff)
	}
	if ms.SubmissionDate != nil {
		t.Fatalf("expected nil submission date, got %v", ms.SubmissionDate)
	}
}

func TestManuscriptResolveTriesUUIDColumnsOnlyForUUIDs(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewManuscriptRepository(db)

	id := "6f1c1a52-5a43-4b6a-9c39-0e7d1a2b3c4d"
	for _, column := range []string{"custom_id", "id", "system_id", "submission_id"} {
		mock.ExpectQuery("FROM manuscripts WHERE " + column).
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)
	}

	_, err := repo.Resolve(context.Background(), id)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManuscriptResolveRejectsBlankIdentifier(t *testing.T) {
	db, _, done := newDBWithMock(t)
	defer done()

	_, err := NewManuscriptRepository(db).Resolve(context.Background(), "  ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestInvitationCreateMapsUniqueViolationToConflict(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewInvitationRepository(db)

	mock.ExpectExec("INSERT INTO review_invitations").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "uq_review_invitations_active"})

	err := repo.Create(context.Background(), &domain.ReviewInvitation{
		ID:              "inv-1",
		ManuscriptID:    "ms-1",
		ReviewerID:      "rv-1",
		InvitedDate:     testTime,
		Status:          domain.InvitationPending,
		InvitationRound: 1,
		UpdatedAt:       testTime,
	})
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestInvitationUpdateReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewInvitationRepository(db)

	mock.ExpectExec("UPDATE review_invitations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.ReviewInvitation{ID: "missing", Status: domain.InvitationAccepted})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvitationListStaleScansNullableColumns(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewInvitationRepository(db)

	expires := testTime.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "manuscript_id", "reviewer_id", "invited_date", "due_date", "invitation_expiration_date",
		"status", "response_date", "queue_position", "invitation_round", "reminder_count", "notes",
		"report_invalidated_date", "updated_at",
	}).AddRow("inv-1", "ms-1", "rv-1", testTime.AddDate(0, 0, -15), nil, expires,
		"pending", nil, int64(2), 1, 0, "", nil, testTime)

	mock.ExpectQuery("FROM review_invitations").
		WithArgs(testTime).
		WillReturnRows(rows)

	got, err := repo.ListStale(context.Background(), testTime)
	if err != nil {
		t.Fatalf("ListStale() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 invitation, got %d", len(got))
	}
	inv := got[0]
	if inv.DueDate != nil || inv.ResponseDate != nil {
		t.Fatalf("expected nil dates, got %+v", inv)
	}
	if inv.InvitationExpirationDate == nil || !inv.InvitationExpirationDate.Equal(expires) {
		t.Fatalf("unexpected expiration %v", inv.InvitationExpirationDate)
	}
	if inv.QueuePosition == nil || *inv.QueuePosition != 2 {
		t.Fatalf("unexpected queue position %v", inv.QueuePosition)
	}
}

func TestQueueRemoveCompactsPositionsInTransaction(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewQueueRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM invitation_queue").
		WithArgs("q-2").
		WillReturnRows(sqlmock.NewRows([]string{"manuscript_id", "queue_position"}).AddRow("ms-1", 2))
	mock.ExpectExec("SET queue_position = queue_position - 1").
		WithArgs("ms-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	entry := &domain.InvitationQueueEntry{ID: "q-2", ManuscriptID: "ms-1", QueuePosition: 2}
	if err := repo.Remove(context.Background(), entry); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
}

func TestQueueRemoveCompactsFromStoredPosition(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewQueueRepository(db)

	// The caller still holds position 2, but an earlier removal moved the
	// entry to 1.
	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM invitation_queue").
		WithArgs("q-b").
		WillReturnRows(sqlmock.NewRows([]string{"manuscript_id", "queue_position"}).AddRow("ms-1", 1))
	mock.ExpectExec("SET queue_position = queue_position - 1").
		WithArgs("ms-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	stale := &domain.InvitationQueueEntry{ID: "q-b", ManuscriptID: "ms-1", QueuePosition: 2}
	if err := repo.Remove(context.Background(), stale); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
}

func TestQueueRemoveMissingEntryRollsBack(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewQueueRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM invitation_queue").
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"manuscript_id", "queue_position"}))
	mock.ExpectRollback()

	err := repo.Remove(context.Background(), &domain.InvitationQueueEntry{ID: "gone", ManuscriptID: "ms-1", QueuePosition: 1})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueuePromoteRollsBackWhenInvitationConflicts(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewQueueRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM invitation_queue").
		WithArgs("q-1").
		WillReturnRows(sqlmock.NewRows([]string{"manuscript_id", "queue_position"}).AddRow("ms-1", 1))
	mock.ExpectExec("UPDATE invitation_queue").
		WithArgs("ms-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO review_invitations").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
	mock.ExpectRollback()

	entry := &domain.InvitationQueueEntry{ID: "q-1", ManuscriptID: "ms-1", ReviewerID: "rv-1", QueuePosition: 1}
	inv := &domain.ReviewInvitation{ID: "inv-1", ManuscriptID: "ms-1", ReviewerID: "rv-1", InvitedDate: testTime, Status: domain.InvitationPending, InvitationRound: 1, UpdatedAt: testTime}
	err := repo.Promote(context.Background(), entry, inv)
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestQueueUpdatePositionsSkipsEmptyUpdates(t *testing.T) {
	db, _, done := newDBWithMock(t)
	defer done()

	if err := NewQueueRepository(db).UpdatePositions(context.Background(), "ms-1", nil); err != nil {
		t.Fatalf("UpdatePositions() error = %v", err)
	}
}

func TestQueueUpdatePositionsAppliesSwap(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewQueueRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SET queue_position = ").
		WithArgs("q-1", "ms-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET queue_position = ").
		WithArgs("q-2", "ms-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdatePositions(context.Background(), "ms-1", []domain.QueuePositionUpdate{
		{ID: "q-1", QueuePosition: 2},
		{ID: "q-2", QueuePosition: 1},
	})
	if err != nil {
		t.Fatalf("UpdatePositions() error = %v", err)
	}
}

func TestQueueFindByPairReturnsNotFound(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	mock.ExpectQuery("FROM invitation_queue").
		WithArgs("ms-1", "rv-9").
		WillReturnError(sql.ErrNoRows)

	_, err := NewQueueRepository(db).FindByPair(context.Background(), "ms-1", "rv-9")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIngestionUpsertManuscriptReportsCreated(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewIngestionRepository(db)
	repo.now = func() time.Time { return testTime }

	mock.ExpectQuery("ON CONFLICT \\(system_id\\) DO UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created"}).AddRow("ms-existing", false))

	id, created, err := repo.UpsertManuscript(context.Background(), &domain.Manuscript{
		SystemID: "sys-1",
		Title:    "Graphene",
		Status:   domain.ManuscriptSubmitted,
	})
	if err != nil {
		t.Fatalf("UpsertManuscript() error = %v", err)
	}
	if id != "ms-existing" || created {
		t.Fatalf("expected existing manuscript, got id=%s created=%v", id, created)
	}
}

func TestIngestionUpsertPublicationsUsesDedupeKey(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewIngestionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reviewer_publications").
		WithArgs(sqlmock.AnyArg(), "rv-1", "10.1000/xyz", "Paper A", "10.1000/XYZ", "", sqlmock.AnyArg(), nil, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reviewer_publications").
		WithArgs(sqlmock.AnyArg(), "rv-1", "title:paper b", " Paper B ", nil, "", sqlmock.AnyArg(), nil, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.UpsertPublications(context.Background(), "rv-1", []domain.ReviewerPublication{
		{Title: "Paper A", DOI: "10.1000/XYZ", IsRelated: true},
		{Title: " Paper B "},
	})
	if err != nil {
		t.Fatalf("UpsertPublications() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 publications, got %d", n)
	}
}

func TestIngestionInsertRetractionConflict(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO reviewer_retractions").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	err := NewIngestionRepository(db).InsertRetraction(context.Background(), "rv-1", []string{"data fabrication"})
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCleanupDeleteCascadeRunsInForeignKeyOrder(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewCleanupRepository(db)

	mock.ExpectBegin()
	for _, table := range []string{
		"reviewer_publications",
		"reviewer_retractions",
		"invitation_queue",
		"review_invitations",
		"reviewer_manuscript_matches",
		"user_manuscripts",
		"potential_reviewers",
		"manuscripts",
	} {
		mock.ExpectExec("DELETE FROM " + table + " WHERE").
			WillReturnResult(sqlmock.NewResult(0, 1))
		if table == "invitation_queue" {
			mock.ExpectExec(`UPDATE invitation_queue q\s+SET queue_position = r.rn`).
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
	}
	mock.ExpectCommit()

	if err := repo.DeleteCascade(context.Background(), "ms-1", []string{"rv-1", "rv-2"}); err != nil {
		t.Fatalf("DeleteCascade() error = %v", err)
	}
}

func TestCleanupDeleteCascadeRollsBackOnForeignKeyViolation(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reviewer_publications").
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})
	mock.ExpectRollback()

	err := NewCleanupRepository(db).DeleteCascade(context.Background(), "ms-1", nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCleanupCountLinked(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"m", "p", "r", "i", "q", "u"}).AddRow(3, 12, 1, 2, 1, 1))

	stats, err := NewCleanupRepository(db).CountLinked(context.Background(), "ms-1", []string{"rv-1", "rv-2", "rv-3"})
	if err != nil {
		t.Fatalf("CountLinked() error = %v", err)
	}
	want := domain.CleanupStats{Reviewers: 3, Matches: 3, Publications: 12, Retractions: 1, Invitations: 2, QueueEntries: 1, UserManuscripts: 1}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}
