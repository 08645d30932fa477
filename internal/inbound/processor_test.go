package inbound_test

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/inbound"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/repository"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/storage"
	"github.com/welldanyogia/webrana-helpdesk-backend/tests/fixtures"
	"github.com/welldanyogia/webrana-helpdesk-backend/tests/mocks"
	"gorm.io/gorm"
)

// ==================== Mocked stage failures ====================

type processorMocks struct {
	customers *mocks.MockCustomerRepository
	tickets   *mocks.MockTicketRepository
	messages  *mocks.MockMessageRepository
	store     *mocks.MockObjectStore
	files     *mocks.MockAttachmentRepository
	notifier  *mocks.MockNotifier
}

func newMockedProcessor() (*inbound.Processor, *processorMocks) {
	m := &processorMocks{
		customers: new(mocks.MockCustomerRepository),
		tickets:   new(mocks.MockTicketRepository),
		messages:  new(mocks.MockMessageRepository),
		store:     mocks.NewMockObjectStore(),
		files:     new(mocks.MockAttachmentRepository),
		notifier:  mocks.NewMockNotifier(),
	}
	ingestor := inbound.NewAttachmentIngestor(m.store, m.files, "ticket-attachments", time.Second, nil)
	p := inbound.NewProcessor(m.customers, m.tickets, m.messages, ingestor, time.Second, nil)
	p.SetNotifier(m.notifier)
	return p, m
}

func TestProcess_ReplyMessageFailureSkipsAttachments(t *testing.T) {
	p, m := newMockedProcessor()
	m.messages.On("Append", mock.Anything, mock.Anything).Return(repository.ErrUnknownTicket)

	email := fixtures.NewPayloadBuilder().
		WithSubject("Re: Help [Ticket#T1]").
		WithAttachment("a.txt", "text/plain", []byte("a")).
		Email()

	result, err := p.Process(context.Background(), email)

	assert.Nil(t, result)
	var stageErr *inbound.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, inbound.StageReplyMessage, stageErr.Stage)
	assert.Equal(t, "T1", stageErr.TicketID)
	assert.ErrorIs(t, err, repository.ErrUnknownTicket)
	m.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.tickets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	m.customers.AssertNotCalled(t, "FindIDByEmail", mock.Anything, mock.Anything)
	assert.Empty(t, m.notifier.GetNotifications())
}

func TestProcess_TicketCreateFailure(t *testing.T) {
	p, m := newMockedProcessor()
	m.customers.On("FindIDByEmail", mock.Anything, "a@b.com").Return(nil, nil)
	m.tickets.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	result, err := p.Process(context.Background(), fixtures.NewPayloadBuilder().Email())

	assert.Nil(t, result)
	var stageErr *inbound.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, inbound.StageTicket, stageErr.Stage)
	m.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestProcess_ZeroTimeoutUsesDefault(t *testing.T) {
	m := &processorMocks{
		customers: new(mocks.MockCustomerRepository),
		tickets:   new(mocks.MockTicketRepository),
		messages:  new(mocks.MockMessageRepository),
	}
	live := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
	m.customers.On("FindIDByEmail", live, "a@b.com").Return(nil, nil)
	m.tickets.On("Create", live, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Ticket).ID = "NEW"
	}).Return(nil)
	m.messages.On("Append", live, mock.Anything).Return(nil)

	ingestor := inbound.NewAttachmentIngestor(mocks.NewMockObjectStore(), new(mocks.MockAttachmentRepository), "ticket-attachments", 0, nil)
	p := inbound.NewProcessor(m.customers, m.tickets, m.messages, ingestor, 0, nil)

	result, err := p.Process(context.Background(), fixtures.NewPayloadBuilder().Email())

	require.NoError(t, err)
	assert.Equal(t, "NEW", result.TicketID)
}

func TestProcess_FirstMessageFailureKeepsTicket(t *testing.T) {
	p, m := newMockedProcessor()
	m.customers.On("FindIDByEmail", mock.Anything, "a@b.com").Return(nil, nil)
	m.tickets.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Ticket).ID = "NEW"
	}).Return(nil)
	m.messages.On("Append", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	email := fixtures.NewPayloadBuilder().WithAttachment("a.txt", "text/plain", []byte("a")).Email()
	result, err := p.Process(context.Background(), email)

	assert.Nil(t, result)
	var stageErr *inbound.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, inbound.StageFirstMessage, stageErr.Stage)
	assert.Equal(t, "NEW", stageErr.TicketID)
	m.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_CustomerLookupErrorProceedsWithoutCustomer(t *testing.T) {
	p, m := newMockedProcessor()
	m.customers.On("FindIDByEmail", mock.Anything, "a@b.com").Return(nil, errors.New("timeout"))
	m.tickets.On("Create", mock.Anything, mock.MatchedBy(func(t *models.Ticket) bool {
		return t.CustomerID == nil && t.Status == models.StatusOpen && t.Title == "Help"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Ticket).ID = "NEW"
	}).Return(nil)
	m.messages.On("Append", mock.Anything, mock.Anything).Return(nil)

	result, err := p.Process(context.Background(), fixtures.NewPayloadBuilder().Email())

	require.NoError(t, err)
	assert.Equal(t, inbound.ModeNewTicket, result.Mode)
	assert.Nil(t, result.CustomerID)
	m.tickets.AssertExpectations(t)
}

func TestProcess_AttachmentFailureDoesNotFailRequest(t *testing.T) {
	p, m := newMockedProcessor()
	m.messages.On("Append", mock.Anything, mock.Anything).Return(nil)
	m.store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(0), errors.New("bucket offline"))

	email := fixtures.NewPayloadBuilder().
		WithSubject("Re: Help [Ticket#T1]").
		WithAttachment("a.txt", "text/plain", []byte("a")).
		Email()

	result, err := p.Process(context.Background(), email)

	require.NoError(t, err)
	assert.Equal(t, inbound.ModeReply, result.Mode)
	assert.Equal(t, 1, result.Attachments.Failed())
	m.files.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProcess_NotifiesOnCustomerMessage(t *testing.T) {
	p, m := newMockedProcessor()
	m.messages.On("Append", mock.Anything, mock.Anything).Return(nil)

	_, err := p.Process(context.Background(), fixtures.NewPayloadBuilder().WithSubject("Re: Help [Ticket#T1]").Email())

	require.NoError(t, err)
	notifications := m.notifier.GetNotifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, "T1", notifications[0].TicketID)
	assert.Equal(t, models.SenderCustomer, notifications[0].Message.SenderType)
}

// ==================== Against a real database ====================

// ProcessorTestSuite runs the processor on SQLite with a local object store
type ProcessorTestSuite struct {
	suite.Suite
	db        *gorm.DB
	processor *inbound.Processor
	storeDir  string
}

func (s *ProcessorTestSuite) SetupTest() {
	s.db = fixtures.NewTestDB(s.T())
	s.storeDir = s.T().TempDir()

	store, err := storage.NewLocalStore(s.storeDir, "http://localhost:8080")
	s.Require().NoError(err)

	ingestor := inbound.NewAttachmentIngestor(store, repository.NewAttachmentRepository(s.db), "ticket-attachments", time.Second, nil)
	s.processor = inbound.NewProcessor(
		repository.NewCustomerRepository(s.db),
		repository.NewTicketRepository(s.db),
		repository.NewMessageRepository(s.db),
		ingestor,
		time.Second,
		nil,
	)
}

func TestProcessorTestSuite(t *testing.T) {
	suite.Run(t, new(ProcessorTestSuite))
}

func (s *ProcessorTestSuite) TestNewTicket_UnknownCustomer() {
	result, err := s.processor.Process(context.Background(), fixtures.NewPayloadBuilder().Email())

	s.Require().NoError(err)
	s.Equal(inbound.ModeNewTicket, result.Mode)
	s.NotEmpty(result.TicketID)
	s.Nil(result.CustomerID)

	var ticket models.Ticket
	s.Require().NoError(s.db.First(&ticket, "id = ?", result.TicketID).Error)
	s.Equal(models.StatusOpen, ticket.Status)
	s.Equal("Help", ticket.Title)
	s.True(ticket.HasUnreadCustomerMessage)

	var messages []models.Message
	s.Require().NoError(s.db.Where("ticket_id = ?", result.TicketID).Find(&messages).Error)
	s.Require().Len(messages, 1)
	s.Equal(models.SenderCustomer, messages[0].SenderType)
	s.Equal("It's broken", messages[0].Content)
}

func (s *ProcessorTestSuite) TestNewTicket_KnownCustomer() {
	customer := &models.Customer{Email: "a@b.com"}
	s.Require().NoError(s.db.Create(customer).Error)

	result, err := s.processor.Process(context.Background(), fixtures.NewPayloadBuilder().Email())

	s.Require().NoError(err)
	s.Require().NotNil(result.CustomerID)
	s.Equal(customer.ID, *result.CustomerID)
}

func (s *ProcessorTestSuite) TestNewTicket_CustomerMatchIsCaseSensitive() {
	s.Require().NoError(s.db.Create(&models.Customer{Email: "a@b.com"}).Error)

	result, err := s.processor.Process(context.Background(), fixtures.NewPayloadBuilder().WithFrom("A@B.com").Email())

	s.Require().NoError(err)
	s.Nil(result.CustomerID)
}

func (s *ProcessorTestSuite) TestReply_UsesTrimmedHTML() {
	s.Require().NoError(s.db.Create(&models.Ticket{ID: "T1", Title: "Help", Status: models.StatusOpen}).Error)

	email := fixtures.NewPayloadBuilder().
		WithSubject("Re: Help [Ticket#T1]").
		WithBodies("", "  <p>Still broken</p>\n", "").
		Email()
	result, err := s.processor.Process(context.Background(), email)

	s.Require().NoError(err)
	s.Equal(inbound.ModeReply, result.Mode)
	s.Equal("T1", result.TicketID)

	var message models.Message
	s.Require().NoError(s.db.First(&message, "id = ?", result.MessageID).Error)
	s.Equal("<p>Still broken</p>", message.Content)

	var count int64
	s.db.Model(&models.Ticket{}).Count(&count)
	s.Equal(int64(1), count, "a reply must not create a ticket")
}

func (s *ProcessorTestSuite) TestReply_UnknownTicket() {
	email := fixtures.NewPayloadBuilder().WithSubject("Re: Help [Ticket#nope]").Email()

	_, err := s.processor.Process(context.Background(), email)

	var stageErr *inbound.StageError
	s.Require().ErrorAs(err, &stageErr)
	s.Equal(inbound.StageReplyMessage, stageErr.Stage)
	s.ErrorIs(err, repository.ErrUnknownTicket)
}

func (s *ProcessorTestSuite) TestAttachmentOnly_StoresSentinelAndObject() {
	email := fixtures.NewPayloadBuilder().
		WithBodies("", "", "").
		WithAttachment("scan.pdf", "application/pdf", []byte("%PDF-1.4")).
		Email()

	result, err := s.processor.Process(context.Background(), email)

	s.Require().NoError(err)
	s.Equal(1, result.Attachments.Uploaded())

	var message models.Message
	s.Require().NoError(s.db.First(&message, "id = ?", result.MessageID).Error)
	s.Equal(inbound.AttachmentOnlyContent, message.Content)

	var attachment models.TicketAttachment
	s.Require().NoError(s.db.First(&attachment, "ticket_id = ?", result.TicketID).Error)
	s.Regexp(regexp.MustCompile(`^`+regexp.QuoteMeta(result.TicketID)+`/\d+-scan\.pdf$`), attachment.StoragePath)
	s.Equal("a@b.com", attachment.UploadedBy)
	s.Equal(int64(8), attachment.FileSize)

	_, statErr := os.Stat(s.storeDir + "/ticket-attachments/" + attachment.StoragePath)
	s.NoError(statErr)
}

func (s *ProcessorTestSuite) TestDuplicateSubmissionCreatesDuplicates() {
	email := fixtures.NewPayloadBuilder().Email()

	first, err := s.processor.Process(context.Background(), email)
	s.Require().NoError(err)
	second, err := s.processor.Process(context.Background(), email)
	s.Require().NoError(err)

	s.NotEqual(first.TicketID, second.TicketID)
	var count int64
	s.db.Model(&models.Ticket{}).Count(&count)
	s.Equal(int64(2), count)

	reply := fixtures.NewPayloadBuilder().WithSubject("Re: Help [Ticket#" + first.TicketID + "]").Email()
	_, err = s.processor.Process(context.Background(), reply)
	s.Require().NoError(err)
	_, err = s.processor.Process(context.Background(), reply)
	s.Require().NoError(err)

	s.db.Model(&models.Message{}).Where("ticket_id = ?", first.TicketID).Count(&count)
	s.Equal(int64(3), count)
}
