package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// MockRunner is a mock implementation of httpapi.Runner.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Submit(ctx context.Context, inputs []models.RawInput) (models.Receipt, error) {
	args := m.Called(ctx, inputs)
	return args.Get(0).(models.Receipt), args.Error(1)
}

func (m *MockRunner) Status(runID uuid.UUID) (models.RunStatusResponse, error) {
	args := m.Called(runID)
	return args.Get(0).(models.RunStatusResponse), args.Error(1)
}

func (m *MockRunner) Cancel(runID uuid.UUID) error {
	args := m.Called(runID)
	return args.Error(0)
}
