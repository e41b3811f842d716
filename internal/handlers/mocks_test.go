package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/stwalsh4118/taxappeal/internal/lifecycle"
	"github.com/stwalsh4118/taxappeal/internal/models"
	"github.com/stwalsh4118/taxappeal/internal/repository"
	"github.com/stwalsh4118/taxappeal/internal/services"
)

// MockAnalysisService is a mock implementation of services.AnalysisService for testing
type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) Analyze(ctx context.Context, rawParcelID string) (*services.AnalysisSnapshot, error) {
	args := m.Called(ctx, rawParcelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AnalysisSnapshot), args.Error(1)
}

// MockAppealService is a mock implementation of services.AppealService for testing
type MockAppealService struct {
	mock.Mock
}

func (m *MockAppealService) appeal(args mock.Arguments) (*models.Appeal, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appeal), args.Error(1)
}

func (m *MockAppealService) Create(ctx context.Context, userID, rawParcelID string) (*models.Appeal, error) {
	return m.appeal(m.Called(ctx, userID, rawParcelID))
}

func (m *MockAppealService) Get(ctx context.Context, userID string, id uuid.UUID) (*models.Appeal, error) {
	return m.appeal(m.Called(ctx, userID, id))
}

func (m *MockAppealService) List(ctx context.Context, userID string) ([]models.Appeal, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Appeal), args.Error(1)
}

func (m *MockAppealService) History(ctx context.Context, userID string, id uuid.UUID) ([]repository.StageEvent, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.StageEvent), args.Error(1)
}

func (m *MockAppealService) Transition(ctx context.Context, userID string, id uuid.UUID, ev lifecycle.Event) (*models.Appeal, error) {
	return m.appeal(m.Called(ctx, userID, id, ev))
}

func (m *MockAppealService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *MockAppealService) Eligibility(ctx context.Context, userID string, id uuid.UUID) (lifecycle.Eligibility, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(lifecycle.Eligibility), args.Error(1)
}

func (m *MockAppealService) RecordPayment(ctx context.Context, userID string, id uuid.UUID, kind lifecycle.PaymentKind) (*models.Appeal, error) {
	return m.appeal(m.Called(ctx, userID, id, kind))
}

func (m *MockAppealService) LetterFacts(ctx context.Context, userID string, id uuid.UUID) (*services.LetterFacts, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LetterFacts), args.Error(1)
}

func (m *MockAppealService) StoreLetter(ctx context.Context, userID string, id uuid.UUID, text string) (*models.Appeal, bool, error) {
	args := m.Called(ctx, userID, id, text)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.Appeal), args.Bool(1), args.Error(2)
}

func (m *MockAppealService) ComputeSuccessFee(ctx context.Context, userID string, id uuid.UUID) (*models.Appeal, float64, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*models.Appeal), args.Get(1).(float64), args.Error(2)
}

// MockPinger is a readiness dependency with a fixed answer.
type MockPinger struct {
	err error
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.err
}
