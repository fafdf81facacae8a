// Package controller implements the contract and appendix approval state
// machine. Every transition runs in one transaction; the employment and
// insurance bookkeeping it triggers runs in a nested savepoint so that a
// bookkeeping failure never undoes the legal state change. Domain events are
// handed to the producer only after commit.
package controller

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/hrm/internal/contract/db"
	"github.com/gartstein/hrm/internal/contract/employment"
	e "github.com/gartstein/hrm/internal/contract/errors"
	"github.com/gartstein/hrm/internal/contract/events"
	"github.com/gartstein/hrm/internal/contract/grade"
	"github.com/gartstein/hrm/internal/contract/insurance"
	"github.com/gartstein/hrm/internal/contract/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(event events.Event)
}

// Repository is the store outside a transaction. All writes go through
// WithTransaction.
type Repository interface {
	GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	GetAppendix(ctx context.Context, id uuid.UUID) (*models.ContractAppendix, error)
	ListApprovals(ctx context.Context, contractID uuid.UUID) ([]models.ContractApproval, error)
	ListAppendices(ctx context.Context, contractID uuid.UUID) ([]models.ContractAppendix, error)
	ListActiveAppendices(ctx context.Context, contractID uuid.UUID, on time.Time) ([]models.ContractAppendix, error)
	ListDueForExpiry(ctx context.Context, asOf time.Time) ([]models.Contract, error)
	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
	Close() error
}

// Options tune the workflow. Zero values fall back to defaults.
type Options struct {
	// ApprovalLevels is the ordered chain created on submission. Appendices
	// are approved by the last level alone.
	ApprovalLevels  []models.ApprovalLevel
	ConflictRetries uint64
	DefaultRegion   int
	DefaultGrade    int
	MaxDeviation    decimal.Decimal
}

type ContractService struct {
	repo       Repository
	producer   EventProducer
	logger     *zap.Logger
	resolver   *employment.Resolver
	versioner  *insurance.Versioner
	levels     []models.ApprovalLevel
	retries    uint64
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

func NewContractService(repo Repository, producer EventProducer, logger *zap.Logger, opts Options) *ContractService {
	levels := opts.ApprovalLevels
	if len(levels) == 0 {
		levels = []models.ApprovalLevel{models.LevelDirector}
	}
	retries := opts.ConflictRetries
	if retries == 0 {
		retries = 3
	}
	detector := grade.NewDetector(logger, opts.MaxDeviation)
	versioner := insurance.NewVersioner(logger, detector, insurance.Config{
		DefaultRegion: opts.DefaultRegion,
		DefaultGrade:  opts.DefaultGrade,
	})
	return &ContractService{
		repo:      repo,
		producer:  producer,
		logger:    logger.Named("contract_service"),
		resolver:  employment.NewResolver(logger),
		versioner: versioner,
		levels:    levels,
		retries:   retries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			return b
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *ContractService) GetContract(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	return s.repo.GetContract(ctx, id)
}

func (s *ContractService) GetAppendix(ctx context.Context, id uuid.UUID) (*models.ContractAppendix, error) {
	return s.repo.GetAppendix(ctx, id)
}

func (s *ContractService) ListApprovals(ctx context.Context, contractID uuid.UUID) ([]models.ContractApproval, error) {
	return s.repo.ListApprovals(ctx, contractID)
}

func (s *ContractService) ListAppendices(ctx context.Context, contractID uuid.UUID) ([]models.ContractAppendix, error) {
	return s.repo.ListAppendices(ctx, contractID)
}

// outbox collects the events of one transaction attempt.
type outbox struct {
	events []events.Event
}

func (o *outbox) add(event events.Event) {
	o.events = append(o.events, event)
}

// inTx runs fn in a transaction, retrying it from scratch on write
// conflicts. Events recorded by the successful attempt are produced after
// commit, in order.
func (s *ContractService) inTx(ctx context.Context, op string, fn func(tx *db.Repository, out *outbox) error) error {
	var out outbox
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		out = outbox{}
		err := s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
			return fn(tx, &out)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, e.ErrConflict) {
			s.logger.Warn("write conflict, retrying",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.retries), ctx))
	if err != nil {
		return err
	}
	for _, event := range out.events {
		s.producer.Produce(event)
	}
	return nil
}

// bestEffort runs bookkeeping in a savepoint. Failures are logged and
// swallowed, except conflicts, which abort the transaction for a retry.
func (s *ContractService) bestEffort(ctx context.Context, tx *db.Repository, step string, contract *models.Contract, fn func(tx *db.Repository) error) error {
	err := tx.WithTransaction(ctx, fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, e.ErrConflict) {
		return err
	}
	s.logger.Warn("bookkeeping failed, transition kept",
		zap.String("step", step),
		zap.String("contract_id", contract.ID.String()),
		zap.String("employee_id", contract.EmployeeID.String()),
		zap.Error(err),
	)
	return nil
}

// onActivated attaches employment and opens the insurance profile for a
// contract that just took effect.
func (s *ContractService) onActivated(ctx context.Context, tx *db.Repository, contract *models.Contract, actor models.Actor) error {
	if err := s.attach(ctx, tx, contract); err != nil {
		return err
	}
	return s.bestEffort(ctx, tx, "insurance profile", contract, func(tx *db.Repository) error {
		_, err := s.versioner.CreateFromContract(ctx, tx, contract, &actor.UserID)
		return err
	})
}

// attach links the contract to its employment period. The in-memory
// contract only learns the period once the savepoint succeeded.
func (s *ContractService) attach(ctx context.Context, tx *db.Repository, contract *models.Contract) error {
	return s.bestEffort(ctx, tx, "employment period", contract, func(tx *db.Repository) error {
		work := *contract
		if _, err := s.resolver.AttachForContract(ctx, tx, &work); err != nil {
			return err
		}
		contract.EmploymentPeriodID = work.EmploymentPeriodID
		return nil
	})
}

// endEmployment ends the contract's employment period on date and closes
// the insurance profile, unless another in-force contract carries the
// employee past that date. The period is handled per contract so that an
// early end of a fixed-term contract pulls its period in.
func (s *ContractService) endEmployment(ctx context.Context, tx *db.Repository, contract *models.Contract, date time.Time, reason models.TerminationReason, note string) error {
	if err := s.bestEffort(ctx, tx, "end employment", contract, func(tx *db.Repository) error {
		_, err := s.resolver.EndForContract(ctx, tx, contract, date, reason, note)
		return err
	}); err != nil {
		return err
	}

	inForce, err := tx.ListContractsForEmployee(ctx, contract.EmployeeID, models.ContractActive, models.ContractSuspended)
	if err != nil {
		return err
	}
	for _, other := range inForce {
		if other.ID == contract.ID {
			continue
		}
		if other.EndDate == nil || other.EndDate.After(date) {
			s.logger.Info("employment continues under another contract",
				zap.String("contract_id", contract.ID.String()),
				zap.String("continuing_contract_id", other.ID.String()),
			)
			return nil
		}
	}
	return s.bestEffort(ctx, tx, "close insurance profile", contract, func(tx *db.Repository) error {
		_, err := s.versioner.CloseOnContractEnd(ctx, tx, contract)
		return err
	})
}

func (s *ContractService) stamp() *time.Time {
	now := s.now()
	return &now
}
