package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
	"gorm.io/gorm"
)

// MessageRepositoryTestSuite is the test suite for MessageRepository
type MessageRepositoryTestSuite struct {
	suite.Suite
	db         *gorm.DB
	repo       MessageRepository
	ticketRepo TicketRepository
	testTicket *models.Ticket
}

func (s *MessageRepositoryTestSuite) SetupSuite() {
	s.db = openTestDB(s.T())
	s.repo = NewMessageRepository(s.db)
	s.ticketRepo = NewTicketRepository(s.db)
}

func (s *MessageRepositoryTestSuite) TearDownSuite() {
	closeTestDB(s.db)
}

func (s *MessageRepositoryTestSuite) SetupTest() {
	cleanTestDB(s.db)

	s.testTicket = &models.Ticket{Title: "Help", Status: models.StatusOpen}
	s.Require().NoError(s.ticketRepo.Create(context.Background(), s.testTicket))
}

func TestMessageRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(MessageRepositoryTestSuite))
}

func (s *MessageRepositoryTestSuite) TestAppend_CustomerMessageFlagsTicketUnread() {
	message := &models.Message{TicketID: s.testTicket.ID, SenderType: models.SenderCustomer, Content: "It's broken"}

	err := s.repo.Append(context.Background(), message)

	s.NoError(err)
	s.NotEmpty(message.ID)
	ticket, _ := s.ticketRepo.GetByID(context.Background(), s.testTicket.ID)
	s.True(ticket.HasUnreadCustomerMessage)
}

func (s *MessageRepositoryTestSuite) TestAppend_SupportMessageLeavesFlag() {
	message := &models.Message{TicketID: s.testTicket.ID, SenderType: models.SenderSupport, Content: "On it"}

	s.NoError(s.repo.Append(context.Background(), message))

	ticket, _ := s.ticketRepo.GetByID(context.Background(), s.testTicket.ID)
	s.False(ticket.HasUnreadCustomerMessage)
}

func (s *MessageRepositoryTestSuite) TestAppend_UnknownTicket() {
	message := &models.Message{TicketID: "does-not-exist", SenderType: models.SenderCustomer, Content: "hello"}

	err := s.repo.Append(context.Background(), message)

	s.ErrorIs(err, ErrUnknownTicket)
	count, _ := s.repo.CountByTicket(context.Background(), "does-not-exist")
	s.Zero(count)
}

func (s *MessageRepositoryTestSuite) TestAppend_SameMessageTwiceCreatesTwoRows() {
	for i := 0; i < 2; i++ {
		message := &models.Message{TicketID: s.testTicket.ID, SenderType: models.SenderCustomer, Content: "again"}
		s.Require().NoError(s.repo.Append(context.Background(), message))
	}

	count, err := s.repo.CountByTicket(context.Background(), s.testTicket.ID)
	s.NoError(err)
	s.Equal(int64(2), count)
}

func (s *MessageRepositoryTestSuite) TestListByTicket_Chronological() {
	for _, content := range []string{"first", "second", "third"} {
		message := &models.Message{TicketID: s.testTicket.ID, SenderType: models.SenderCustomer, Content: content}
		s.Require().NoError(s.repo.Append(context.Background(), message))
	}

	messages, err := s.repo.ListByTicket(context.Background(), s.testTicket.ID)

	s.NoError(err)
	s.Require().Len(messages, 3)
	s.Equal("first", messages[0].Content)
	s.Equal("third", messages[2].Content)
}

func (s *MessageRepositoryTestSuite) TestGetByID_NotFound() {
	message, err := s.repo.GetByID(context.Background(), "missing")

	s.ErrorIs(err, ErrNotFound)
	s.Nil(message)
}
