package inbound_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/inbound"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/repository"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/storage"
	"github.com/welldanyogia/webrana-helpdesk-backend/tests/fixtures"
	"github.com/welldanyogia/webrana-helpdesk-backend/tests/mocks"
)

const bucket = "ticket-attachments"

func pathFor(name string) interface{} {
	pattern := regexp.MustCompile(`^T1/\d{13}-` + regexp.QuoteMeta(name) + `$`)
	return mock.MatchedBy(func(p string) bool { return pattern.MatchString(p) })
}

func TestStoragePath(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	assert.Equal(t, "T1/1700000000123-report.pdf", inbound.StoragePath("T1", at, "report.pdf"))
	assert.Equal(t, "T1/1700000000123-____etc_passwd", inbound.StoragePath("T1", at, "../../etc/passwd"))
	assert.NotContains(t, strings.TrimPrefix(inbound.StoragePath("T1", at, "a/b.txt"), "T1/"), "/")
}

func TestAttachmentIngestor_UploadsAndRecords(t *testing.T) {
	store := mocks.NewMockObjectStore()
	repo := new(mocks.MockAttachmentRepository)

	store.On("Upload", mock.Anything, bucket, pathFor("hello.txt"), "text/plain").Return(int64(5), nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *models.TicketAttachment) bool {
		return a.TicketID == "T1" &&
			a.FileName == "hello.txt" &&
			a.FileType == "text/plain" &&
			a.FileSize == 5 &&
			a.StorageBucket == bucket &&
			a.UploadedBy == "a@b.com"
	})).Return(nil)

	ingestor := inbound.NewAttachmentIngestor(store, repo, bucket, time.Second, nil)
	report := ingestor.Ingest(context.Background(), "T1", "a@b.com", []inbound.Attachment{
		{Name: "hello.txt", ContentType: "text/plain", Content: "aGVsbG8=", ContentLength: 5},
	})

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, inbound.AttachmentUploaded, report.Outcomes[0].Status)
	assert.Equal(t, 1, report.Uploaded())
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, []byte("hello"), store.Uploaded[bucket+"/"+report.Outcomes[0].StoragePath])
	store.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestAttachmentIngestor_FileSizeFallsBackToDecodedLength(t *testing.T) {
	store := mocks.NewMockObjectStore()
	repo := new(mocks.MockAttachmentRepository)

	store.On("Upload", mock.Anything, bucket, mock.Anything, mock.Anything).Return(int64(5), nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *models.TicketAttachment) bool {
		return a.FileSize == 5
	})).Return(nil)

	ingestor := inbound.NewAttachmentIngestor(store, repo, bucket, time.Second, nil)
	report := ingestor.Ingest(context.Background(), "T1", "a@b.com", []inbound.Attachment{
		{Name: "hello.txt", ContentType: "text/plain", Content: "aGVs\nbG8="},
	})

	assert.Equal(t, 1, report.Uploaded())
	repo.AssertExpectations(t)
}

func TestAttachmentIngestor_FailuresAreIsolated(t *testing.T) {
	store := mocks.NewMockObjectStore()
	repo := new(mocks.MockAttachmentRepository)

	store.On("Upload", mock.Anything, bucket, pathFor("first.txt"), "text/plain").Return(int64(1), nil)
	store.On("Upload", mock.Anything, bucket, pathFor("third.txt"), "text/plain").Return(int64(0), storage.ErrObjectExists)
	store.On("Upload", mock.Anything, bucket, pathFor("fourth.txt"), "text/plain").Return(int64(1), nil)
	store.On("Upload", mock.Anything, bucket, pathFor("fifth.txt"), "text/plain").Return(int64(1), nil)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *models.TicketAttachment) bool { return a.FileName == "first.txt" })).Return(nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *models.TicketAttachment) bool { return a.FileName == "fourth.txt" })).Return(errors.New("insert failed"))
	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *models.TicketAttachment) bool { return a.FileName == "fifth.txt" })).Return(nil)

	ingestor := inbound.NewAttachmentIngestor(store, repo, bucket, time.Second, nil)
	report := ingestor.Ingest(context.Background(), "T1", "a@b.com", []inbound.Attachment{
		{Name: "first.txt", ContentType: "text/plain", Content: "YQ=="},
		{Name: "second.txt", ContentType: "text/plain", Content: "%%% not base64 %%%"},
		{Name: "third.txt", ContentType: "text/plain", Content: "Yg=="},
		{Name: "fourth.txt", ContentType: "text/plain", Content: "Yw=="},
		{Name: "fifth.txt", ContentType: "text/plain", Content: "ZA=="},
	})

	require.Len(t, report.Outcomes, 5)
	assert.Equal(t, inbound.AttachmentUploaded, report.Outcomes[0].Status)
	assert.Equal(t, inbound.AttachmentFailedDecode, report.Outcomes[1].Status)
	assert.Equal(t, inbound.AttachmentFailedUpload, report.Outcomes[2].Status)
	assert.ErrorIs(t, report.Outcomes[2].Err, storage.ErrObjectExists)
	assert.Equal(t, inbound.AttachmentFailedMetadata, report.Outcomes[3].Status)
	assert.Equal(t, inbound.AttachmentUploaded, report.Outcomes[4].Status)
	assert.Equal(t, 2, report.Uploaded())
	assert.Equal(t, 3, report.Failed())

	// A failed upload never reaches the metadata table
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.MatchedBy(func(a *models.TicketAttachment) bool { return a.FileName == "third.txt" }))
	repo.AssertNumberOfCalls(t, "Create", 3)
}

func TestAttachmentIngestor_Empty(t *testing.T) {
	ingestor := inbound.NewAttachmentIngestor(mocks.NewMockObjectStore(), new(mocks.MockAttachmentRepository), bucket, time.Second, nil)

	report := ingestor.Ingest(context.Background(), "T1", "a@b.com", nil)

	assert.Empty(t, report.Outcomes)
	assert.Equal(t, 0, report.Failed())
}

func TestAttachmentIngestor_SameNamedFilesGetDistinctKeys(t *testing.T) {
	db := fixtures.NewTestDB(t)
	ticket := &models.Ticket{Title: "Fotos", Status: models.StatusOpen}
	require.NoError(t, db.Create(ticket).Error)

	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	repo := repository.NewAttachmentRepository(db)

	photos := make([]inbound.Attachment, 5)
	for i := range photos {
		photos[i] = inbound.Attachment{Name: "image.png", ContentType: "image/png", Content: "aGVsbG8="}
	}

	ingestor := inbound.NewAttachmentIngestor(store, repo, bucket, time.Second, nil)
	report := ingestor.Ingest(context.Background(), ticket.ID, "a@b.com", photos)

	assert.Equal(t, 5, report.Uploaded())
	assert.Equal(t, 0, report.Failed())

	keyPattern := regexp.MustCompile(`^` + regexp.QuoteMeta(ticket.ID) + `/\d{13}-image\.png$`)
	seen := make(map[string]bool)
	for _, o := range report.Outcomes {
		assert.Regexp(t, keyPattern, o.StoragePath)
		assert.False(t, seen[o.StoragePath], "duplicate key %s", o.StoragePath)
		seen[o.StoragePath] = true

		obj, err := store.Open(context.Background(), bucket, o.StoragePath)
		require.NoError(t, err)
		obj.Body.Close()
	}

	stored, err := repo.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 5)
}

func TestAttachmentIngestor_RetriesTakenKey(t *testing.T) {
	store := mocks.NewMockObjectStore()
	repo := new(mocks.MockAttachmentRepository)

	store.On("Upload", mock.Anything, bucket, pathFor("image.png"), "image/png").Return(int64(0), storage.ErrObjectExists).Once()
	store.On("Upload", mock.Anything, bucket, pathFor("image.png"), "image/png").Return(int64(5), nil).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	ingestor := inbound.NewAttachmentIngestor(store, repo, bucket, time.Second, nil)
	report := ingestor.Ingest(context.Background(), "T1", "a@b.com", []inbound.Attachment{
		{Name: "image.png", ContentType: "image/png", Content: "aGVsbG8="},
	})

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, inbound.AttachmentUploaded, report.Outcomes[0].Status)
	assert.Contains(t, store.Uploaded, bucket+"/"+report.Outcomes[0].StoragePath)
	store.AssertNumberOfCalls(t, "Upload", 2)
}

func TestAttachmentIngestor_ZeroTimeoutUsesDefault(t *testing.T) {
	store := mocks.NewMockObjectStore()
	repo := new(mocks.MockAttachmentRepository)

	store.On("Upload", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }),
		bucket, mock.Anything, "text/plain").Return(int64(5), nil)
	repo.On("Create", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).Return(nil)

	ingestor := inbound.NewAttachmentIngestor(store, repo, bucket, 0, nil)
	report := ingestor.Ingest(context.Background(), "T1", "a@b.com", []inbound.Attachment{
		{Name: "hello.txt", ContentType: "text/plain", Content: "aGVsbG8="},
	})

	assert.Equal(t, 1, report.Uploaded())
}
