package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}

func (m *MockRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}

func (m *MockRepository) GetAccountByID(id int64) (Account, error) {
	args := m.Called(id)
	return args.Get(0).(Account), args.Error(1)
}

func (m *MockRepository) CreateRoom(name string, members []string) (Room, error) {
	args := m.Called(name, members)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRepository) GetRoomByID(id string) (Room, error) {
	args := m.Called(id)
	return args.Get(0).(Room), args.Error(1)
}

func (m *MockRepository) AppendMessage(roomID string, msg Message) (Message, error) {
	args := m.Called(roomID, msg)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockRepository) ListMessages(roomID string) ([]Message, error) {
	args := m.Called(roomID)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
