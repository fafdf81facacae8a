package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/hrm/internal/contract/db"
	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/events"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockRepository implements the Repository interface for testing
type MockRepository struct {
	getContract     func(context.Context, uuid.UUID) (*models.Contract, error)
	withTransaction func(context.Context, func(*db.Repository) error) error
}

func (m *MockRepository) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return m.getContract(ctx, id)
}

func (m *MockRepository) GetAppendix(context.Context, uuid.UUID) (*models.ContractAppendix, error) {
	return nil, e.ErrNotFound
}

func (m *MockRepository) ListApprovals(context.Context, uuid.UUID) ([]models.ContractApproval, error) {
	return nil, nil
}

func (m *MockRepository) ListAppendices(context.Context, uuid.UUID) ([]models.ContractAppendix, error) {
	return nil, nil
}

func (m *MockRepository) ListActiveAppendices(context.Context, uuid.UUID, time.Time) ([]models.ContractAppendix, error) {
	return nil, nil
}

func (m *MockRepository) ListDueForExpiry(context.Context, time.Time) ([]models.Contract, error) {
	return nil, nil
}

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(*db.Repository) error) error {
	return m.withTransaction(ctx, fn)
}

func (m *MockRepository) Close() error {
	return nil
}

// MockProducer is a test double for the Kafka producer.
type MockProducer struct {
	mu             sync.Mutex
	producedEvents []events.Event
	wg             *sync.WaitGroup
}

// Produce records the event and signals the wait group.
func (m *MockProducer) Produce(event events.Event) {
	m.mu.Lock()
	m.producedEvents = append(m.producedEvents, event)
	m.mu.Unlock()
	if m.wg != nil {
		m.wg.Done()
	}
}

func (m *MockProducer) types() []events.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.EventType, 0, len(m.producedEvents))
	for _, ev := range m.producedEvents {
		out = append(out, ev.Type)
	}
	return out
}

func newMockService(t *testing.T, repo *MockRepository, producer *MockProducer) *ContractService {
	svc := NewContractService(repo, producer, zaptest.NewLogger(t), Options{ConflictRetries: 2})
	svc.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return svc
}

func TestContractService_InTx(t *testing.T) {
	event := events.Event{ID: uuid.New(), Type: events.ContractApproved}

	tests := []struct {
		name           string
		failures       int
		failWith       error
		expectAttempts int
		expectError    error
		expectEvents   int
	}{
		{name: "commits first time", expectAttempts: 1, expectEvents: 1},
		{name: "retries conflicts", failures: 2, failWith: e.ErrConflict, expectAttempts: 3, expectEvents: 1},
		{name: "gives up after retries", failures: 10, failWith: e.ErrConflict, expectAttempts: 3, expectError: e.ErrConflict},
		{name: "rejection is not retried", failures: 10, failWith: fmt.Errorf("%w: nope", e.ErrInvalidState), expectAttempts: 1, expectError: e.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			repo := &MockRepository{
				withTransaction: func(_ context.Context, fn func(*db.Repository) error) error {
					attempts++
					if err := fn(nil); err != nil {
						return err
					}
					if attempts <= tt.failures {
						return tt.failWith
					}
					return nil
				},
			}
			producer := &MockProducer{}
			svc := newMockService(t, repo, producer)

			err := svc.inTx(context.Background(), "test", func(_ *db.Repository, out *outbox) error {
				out.add(event)
				return nil
			})

			assert.Equal(t, tt.expectAttempts, attempts)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, producer.types(), tt.expectEvents, "events of failed attempts must not leak")
		})
	}
}

func TestContractService_InTxStopsOnCancelledContext(t *testing.T) {
	attempts := 0
	repo := &MockRepository{
		withTransaction: func(context.Context, func(*db.Repository) error) error {
			attempts++
			return e.ErrConflict
		},
	}
	svc := newMockService(t, repo, &MockProducer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.inTx(ctx, "test", func(*db.Repository, *outbox) error { return nil })
	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 1)
}

func TestContractService_GetContract(t *testing.T) {
	testID := uuid.New()

	tests := []struct {
		name          string
		mockSetup     func(*MockRepository)
		expectedError error
	}{
		{
			name: "successful get",
			mockSetup: func(mr *MockRepository) {
				mr.getContract = func(_ context.Context, id uuid.UUID) (*models.Contract, error) {
					return &models.Contract{ID: id}, nil
				}
			},
		},
		{
			name: "not found",
			mockSetup: func(mr *MockRepository) {
				mr.getContract = func(context.Context, uuid.UUID) (*models.Contract, error) {
					return nil, e.ErrNotFound
				}
			},
			expectedError: e.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRepository{}
			tt.mockSetup(repo)
			svc := newMockService(t, repo, &MockProducer{})

			result, err := svc.GetContract(context.Background(), testID)
			if tt.expectedError != nil {
				assert.True(t, errors.Is(err, tt.expectedError))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testID, result.ID)
		})
	}
}

func TestHandleCommand_RejectsMalformedCommands(t *testing.T) {
	svc := newMockService(t, &MockRepository{}, &MockProducer{})

	tests := []events.Command{
		{Type: "fire_everyone"},
		{Type: events.CommandTerminate, ContractID: uuid.New()},
		{Type: events.CommandRenew, ContractID: uuid.New()},
	}
	for _, cmd := range tests {
		t.Run(string(cmd.Type), func(t *testing.T) {
			err := svc.HandleCommand(context.Background(), cmd)
			assert.ErrorIs(t, err, e.ErrInvalidInput)
			assert.True(t, e.IsRejection(err))
		})
	}
}

func TestValidateInput(t *testing.T) {
	err := validateInput(TerminationInput{})
	require.ErrorIs(t, err, e.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Date failed required")
	assert.Contains(t, err.Error(), "Reason failed required")

	err = validateInput(CreateContractInput{EmployeeID: uuid.New(), PositionID: uuid.New(), StartDate: time.Now(), Source: "IMPORTED"})
	require.ErrorIs(t, err, e.ErrInvalidInput)
	assert.Contains(t, err.Error(), "Source failed oneof")
}
