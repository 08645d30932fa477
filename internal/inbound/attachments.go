package inbound

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/welldanyogia/webrana-helpdesk-backend/internal/logger"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/repository"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/storage"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/validator"
)

// AttachmentStatus is the outcome of ingesting one attachment
type AttachmentStatus string

const (
	AttachmentUploaded       AttachmentStatus = "uploaded"
	AttachmentFailedDecode   AttachmentStatus = "failed_decode"
	AttachmentFailedUpload   AttachmentStatus = "failed_upload"
	AttachmentFailedMetadata AttachmentStatus = "failed_metadata"
)

// AttachmentOutcome records what happened to a single attachment
type AttachmentOutcome struct {
	Name         string
	Status       AttachmentStatus
	StoragePath  string
	AttachmentID string
	Err          error
}

// AttachmentReport lists one outcome per attachment, in input order
type AttachmentReport struct {
	Outcomes []AttachmentOutcome
}

// Uploaded counts attachments that were stored and recorded
func (r AttachmentReport) Uploaded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == AttachmentUploaded {
			n++
		}
	}
	return n
}

// Failed counts attachments that did not end up fully recorded
func (r AttachmentReport) Failed() int {
	return len(r.Outcomes) - r.Uploaded()
}

// AttachmentIngestor stores email attachments and records their metadata.
// Each attachment is handled on its own: a failure skips that file only.
// An object is uploaded before its row is written, so a row never points at
// a missing object; a failed row insert leaves the object orphaned.
type AttachmentIngestor struct {
	store     storage.ObjectStore
	repo      repository.AttachmentRepository
	bucket    string
	ioTimeout time.Duration
	now       func() time.Time
	logger    *slog.Logger
	security  *logger.SecurityLogger
}

// NewAttachmentIngestor creates an ingestor writing into bucket. A
// non-positive ioTimeout falls back to DefaultIOTimeout.
func NewAttachmentIngestor(store storage.ObjectStore, repo repository.AttachmentRepository, bucket string, ioTimeout time.Duration, log *slog.Logger) *AttachmentIngestor {
	if ioTimeout <= 0 {
		ioTimeout = DefaultIOTimeout
	}
	return &AttachmentIngestor{
		store:     store,
		repo:      repo,
		bucket:    bucket,
		ioTimeout: ioTimeout,
		now:       time.Now,
		logger:    log,
	}
}

// SetSecurityLogger enables security events for rejected attachments
func (a *AttachmentIngestor) SetSecurityLogger(sec *logger.SecurityLogger) {
	a.security = sec
}

// StoragePath builds the object key {ticket_id}/{unix_millis}-{filename}
func StoragePath(ticketID string, at time.Time, filename string) string {
	return fmt.Sprintf("%s/%d-%s", ticketID, at.UnixMilli(), validator.SanitizeFilename(filename))
}

// Ingest processes attachments sequentially for ticketID. It never fails as
// a whole and never touches ticket or message rows.
func (a *AttachmentIngestor) Ingest(ctx context.Context, ticketID, uploadedBy string, attachments []Attachment) AttachmentReport {
	report := AttachmentReport{Outcomes: make([]AttachmentOutcome, 0, len(attachments))}
	var last int64

	for _, att := range attachments {
		outcome := a.ingestOne(ctx, ticketID, uploadedBy, att, &last)
		report.Outcomes = append(report.Outcomes, outcome)

		if a.logger == nil {
			continue
		}
		if outcome.Err != nil {
			a.logger.Warn("attachment skipped",
				slog.String("ticket_id", ticketID),
				slog.String("file_name", outcome.Name),
				slog.String("status", string(outcome.Status)),
				slog.Any("error", outcome.Err))
		} else {
			a.logger.Info("attachment stored",
				slog.String("ticket_id", ticketID),
				slog.String("storage_path", outcome.StoragePath))
		}
	}

	return report
}

// nextStamp returns a millisecond timestamp strictly greater than *last so
// same-named files within one email get distinct keys
func (a *AttachmentIngestor) nextStamp(last *int64) time.Time {
	ms := a.now().UnixMilli()
	if ms <= *last {
		ms = *last + 1
	}
	*last = ms
	return time.UnixMilli(ms)
}

func (a *AttachmentIngestor) ingestOne(ctx context.Context, ticketID, uploadedBy string, att Attachment, last *int64) AttachmentOutcome {
	outcome := AttachmentOutcome{Name: att.Name}

	data, err := decodeBase64(att.Content)
	if err != nil {
		outcome.Status = AttachmentFailedDecode
		outcome.Err = err
		return outcome
	}

	path := StoragePath(ticketID, a.nextStamp(last), att.Name)
	err = a.upload(ctx, path, data, att.ContentType)
	if errors.Is(err, storage.ErrObjectExists) {
		// Key taken by a concurrent email for the same ticket
		path = StoragePath(ticketID, a.nextStamp(last), att.Name)
		err = a.upload(ctx, path, data, att.ContentType)
	}
	outcome.StoragePath = path
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) && a.security != nil {
			a.security.RejectedAttachment(uploadedBy, ticketID, att.Name, "file_too_large")
		}
		outcome.Status = AttachmentFailedUpload
		outcome.Err = err
		return outcome
	}

	size := att.ContentLength
	if size <= 0 {
		size = int64(len(data))
	}

	record := &models.TicketAttachment{
		TicketID:      ticketID,
		FileName:      att.Name,
		FileType:      att.ContentType,
		FileSize:      size,
		StorageBucket: a.bucket,
		StoragePath:   path,
		UploadedBy:    uploadedBy,
	}

	insertCtx, cancel := context.WithTimeout(ctx, a.ioTimeout)
	err = a.repo.Create(insertCtx, record)
	cancel()
	if err != nil {
		outcome.Status = AttachmentFailedMetadata
		outcome.Err = err
		return outcome
	}

	outcome.Status = AttachmentUploaded
	outcome.AttachmentID = record.ID
	return outcome
}

func (a *AttachmentIngestor) upload(ctx context.Context, path string, data []byte, contentType string) error {
	uploadCtx, cancel := context.WithTimeout(ctx, a.ioTimeout)
	defer cancel()
	_, err := a.store.Upload(uploadCtx, a.bucket, path, bytes.NewReader(data), contentType)
	return err
}

// decodeBase64 accepts standard base64 with or without padding and ignores
// embedded line breaks
func decodeBase64(content string) ([]byte, error) {
	cleaned := strings.Join(strings.Fields(content), "")
	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, fmt.Errorf("invalid base64 content: %w", err)
}
