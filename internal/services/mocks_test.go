package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/stwalsh4118/taxappeal/internal/deadlines"
	"github.com/stwalsh4118/taxappeal/internal/models"
	"github.com/stwalsh4118/taxappeal/internal/repository"
)

// MockPropertyRepository is a mock implementation of PropertyRepository for testing
type MockPropertyRepository struct {
	mock.Mock
}

func (m *MockPropertyRepository) FindByParcelID(ctx context.Context, id models.ParcelID) (*models.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Property), args.Error(1)
}

func (m *MockPropertyRepository) FindComparables(ctx context.Context, subject *models.Property, limit int) ([]models.Comparable, error) {
	args := m.Called(ctx, subject, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comparable), args.Error(1)
}

func (m *MockPropertyRepository) FindExemptions(ctx context.Context, id models.ParcelID) ([]models.Exemption, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Exemption), args.Error(1)
}

// MockSocialProofRepository is a mock implementation of SocialProofRepository for testing
type MockSocialProofRepository struct {
	mock.Mock
}

func (m *MockSocialProofRepository) FindSocialProof(ctx context.Context, township, classCode string) (*models.SocialProof, error) {
	args := m.Called(ctx, township, classCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SocialProof), args.Error(1)
}

// MockDeadlineLookup is a mock implementation of DeadlineLookup for testing
type MockDeadlineLookup struct {
	mock.Mock
}

func (m *MockDeadlineLookup) Lookup(ctx context.Context, township string, year int, asOf time.Time) ([]deadlines.Countdown, error) {
	args := m.Called(ctx, township, year, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]deadlines.Countdown), args.Error(1)
}

// MockAppealRepository is a mock implementation of AppealRepository for testing
type MockAppealRepository struct {
	mock.Mock
}

func (m *MockAppealRepository) Create(ctx context.Context, a *models.Appeal) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockAppealRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Appeal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out a copy so the service cannot mutate the fixture between calls
	return args.Get(0).(*models.Appeal).Clone(), args.Error(1)
}

func (m *MockAppealRepository) ListByUser(ctx context.Context, userID string) ([]models.Appeal, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Appeal), args.Error(1)
}

func (m *MockAppealRepository) UpdateIfVersion(ctx context.Context, a *models.Appeal, expectedVersion int, expectedStage models.Stage) error {
	return m.Called(ctx, a, expectedVersion, expectedStage).Error(0)
}

func (m *MockAppealRepository) DeleteIfVersion(ctx context.Context, id uuid.UUID, expectedVersion int, expectedStage models.Stage) error {
	return m.Called(ctx, id, expectedVersion, expectedStage).Error(0)
}

func (m *MockAppealRepository) History(ctx context.Context, id uuid.UUID) ([]repository.StageEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.StageEvent), args.Error(1)
}

// MockAnalysisService is a mock implementation of AnalysisService for testing
type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) Analyze(ctx context.Context, rawParcelID string) (*AnalysisSnapshot, error) {
	args := m.Called(ctx, rawParcelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AnalysisSnapshot), args.Error(1)
}
