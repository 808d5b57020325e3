package mocks

import (
	"image"

	"github.com/stretchr/testify/mock"

	"github.com/Lllllllleong/ocrgrabber/internal/services"
)

// MockPDFOpener is a mock implementation of services.PDFOpener.
type MockPDFOpener struct {
	mock.Mock
}

func (m *MockPDFOpener) Open(data []byte) (services.PDFDocument, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(services.PDFDocument), args.Error(1)
}

// MockPDFDocument is a mock implementation of services.PDFDocument.
type MockPDFDocument struct {
	mock.Mock
}

func (m *MockPDFDocument) NumPages() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockPDFDocument) RenderPage(pageIndex int, scale float64) (image.Image, error) {
	args := m.Called(pageIndex, scale)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(image.Image), args.Error(1)
}

func (m *MockPDFDocument) Close() error {
	args := m.Called()
	return args.Error(0)
}
