package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gartstein/hrm/internal/contract/interval"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// MockKafkaWriter implements KafkaWriter for testing
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testContract() *models.Contract {
	return &models.Contract{
		ID:         uuid.New(),
		EmployeeID: uuid.New(),
		Status:     models.ContractActive,
		StartDate:  interval.Date(2024, 1, 1),
	}
}

func TestNewContractEvent(t *testing.T) {
	actor := models.Actor{UserID: uuid.New(), Name: "Dana"}
	contract := testContract()

	event := NewContractEvent(ContractApproved, actor, contract)
	contract.Status = models.ContractTerminated

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, actor.UserID, event.ActorID)
	assert.Equal(t, contract.EmployeeID, event.EmployeeID)
	assert.Equal(t, models.ContractActive, event.Contract.Status, "event keeps a snapshot")
	assert.Equal(t, "too late", event.WithReason("too late").Reason)
	assert.Empty(t, event.Reason)
}

func TestProducer_Produce(t *testing.T) {
	t.Run("dropped event when queue full", func(t *testing.T) {
		core, recorded := observer.New(zap.WarnLevel)
		producer := &Producer{
			events: make(chan Event, 1),
			logger: zap.New(core),
		}
		event := NewContractEvent(ContractSubmitted, models.Actor{}, testContract())

		producer.Produce(event)
		producer.Produce(event)

		assert.Len(t, producer.events, 1)
		assert.Equal(t, 1, recorded.FilterMessage("Kafka producer queue full, dropping event").Len())
		assert.Equal(t, 1, recorded.FilterField(zap.String("employee_id", event.EmployeeID.String())).Len())
	})
}

func TestProducer_SendEvent(t *testing.T) {
	event := NewContractEvent(ContractApproved, models.Actor{UserID: uuid.New()}, testContract())

	t.Run("successful send", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil)
		producer := &Producer{writer: mockWriter, logger: zaptest.NewLogger(t)}

		producer.sendEvent(context.Background(), event)

		require.Len(t, mockWriter.Calls, 1)
		msgs := mockWriter.Calls[0].Arguments.Get(1).([]kafka.Message)
		require.Len(t, msgs, 1)
		assert.Equal(t, []byte(event.EmployeeID.String()), msgs[0].Key)
		assert.Equal(t, "event_type", msgs[0].Headers[0].Key)
		assert.Equal(t, []byte(ContractApproved), msgs[0].Headers[0].Value)

		var decoded Event
		require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
		assert.Equal(t, event.ID, decoded.ID)
		assert.Equal(t, ContractApproved, decoded.Type)
		assert.Equal(t, event.Contract.ID, decoded.Contract.ID)
	})

	t.Run("serialization error", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		core, recorded := observer.New(zap.ErrorLevel)
		producer := &Producer{writer: mockWriter, logger: zap.New(core)}

		oldMarshal := jsonMarshal
		jsonMarshal = func(_ interface{}) ([]byte, error) {
			return nil, errors.New("mock marshal error")
		}
		defer func() { jsonMarshal = oldMarshal }()

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to serialize event").Len())
		mockWriter.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})

	t.Run("write error", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("kafka error"))
		core, recorded := observer.New(zap.ErrorLevel)
		producer := &Producer{writer: mockWriter, logger: zap.New(core)}

		producer.sendEvent(context.Background(), event)

		assert.Equal(t, 1, recorded.FilterMessage("Failed to produce event").Len())
	})
}

func TestProducer_EventLoop(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) { wg.Done() })
	mockWriter.On("Close").Return(nil)

	producer := newProducer(mockWriter, zaptest.NewLogger(t), 1)
	producer.Produce(NewContractEvent(ContractTerminated, models.Actor{}, testContract()))

	waitOrFail(t, &wg)
	producer.Close()
	mockWriter.AssertCalled(t, "Close")
}

func TestProducer_CloseFlushesQueue(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	mockWriter.On("WriteMessages", mock.Anything, mock.Anything).Return(nil)
	mockWriter.On("Close").Return(nil)

	// the loop is not running yet, so both events stay queued until Close
	producer := &Producer{
		writer:    mockWriter,
		events:    make(chan Event, 2),
		logger:    zaptest.NewLogger(t),
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
	}
	producer.Produce(NewContractEvent(ContractSubmitted, models.Actor{}, testContract()))
	producer.Produce(NewContractEvent(ContractApproved, models.Actor{}, testContract()))

	close(producer.closeChan)
	producer.eventLoop()

	mockWriter.AssertNumberOfCalls(t, "WriteMessages", 2)
	select {
	case <-producer.done:
	default:
		t.Error("done not closed")
	}
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
