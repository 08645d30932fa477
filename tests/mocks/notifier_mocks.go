package mocks

import (
	"sync"

	"github.com/welldanyogia/webrana-helpdesk-backend/internal/models"
)

// NotificationRecord records a notification sent through the mock notifier
type NotificationRecord struct {
	TicketID string
	Message  *models.Message
}

// MockNotifier implements inbound.Notifier and records every call
type MockNotifier struct {
	mu            sync.Mutex
	Notifications []NotificationRecord
}

// NewMockNotifier creates a new MockNotifier instance
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Notifications: make([]NotificationRecord, 0)}
}

// NotifyNewMessage records the notification
func (m *MockNotifier) NotifyNewMessage(ticketID string, message *models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, NotificationRecord{TicketID: ticketID, Message: message})
}

// GetNotifications returns all recorded notifications
func (m *MockNotifier) GetNotifications() []NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NotificationRecord(nil), m.Notifications...)
}
