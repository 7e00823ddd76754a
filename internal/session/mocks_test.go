package session

import (
	"context"

	"github.com/hpkotak/amphy/internal/provider"
	"github.com/stretchr/testify/mock"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Name() string { return "mock-engine" }

func (m *mockEngine) Availability(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockEngine) Create(ctx context.Context, systemPrompt string) (provider.LocalModel, error) {
	args := m.Called(ctx, systemPrompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(provider.LocalModel), args.Error(1)
}

func (m *mockEngine) SummarizerAvailability(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockEngine) CreateSummarizer(ctx context.Context, opts provider.SummarizerOptions) (provider.Summarizer, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(provider.Summarizer), args.Error(1)
}

type mockModel struct {
	mock.Mock
}

func (m *mockModel) CountTokens(ctx context.Context, text string) (int, error) {
	args := m.Called(ctx, text)
	return args.Int(0), args.Error(1)
}

func (m *mockModel) Prompt(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

func (m *mockModel) Destroy(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

func (m *mockSummarizer) Destroy(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Name() string  { return "mock-remote" }
func (m *mockRemote) Model() string { return provider.GeminiModel }

func (m *mockRemote) CountTokens(ctx context.Context, text string) (int, error) {
	args := m.Called(ctx, text)
	return args.Int(0), args.Error(1)
}

func (m *mockRemote) Generate(ctx context.Context, text string, opts provider.GenerateOptions) (string, error) {
	args := m.Called(ctx, text, opts)
	return args.String(0), args.Error(1)
}
