package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
	"github.com/Lllllllleong/ocrgrabber/internal/ocr"
)

// MockEngine is a mock implementation of ocr.StagedEngine.
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockEngine) Stages() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockEngine) Recognize(ctx context.Context, in ocr.Input, progress ocr.ProgressFunc) (models.OCRResult, error) {
	args := m.Called(ctx, in, progress)
	return args.Get(0).(models.OCRResult), args.Error(1)
}
