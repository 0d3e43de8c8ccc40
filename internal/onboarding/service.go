// Package onboarding creates tenants: a church with its first administrator and trial subscription, and
// branches under an existing headquarters.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/covenant-hq/church-backend/internal/churches"
	"github.com/covenant-hq/church-backend/internal/models"
	"github.com/covenant-hq/church-backend/internal/subscriptions"
	"github.com/covenant-hq/church-backend/pkg/database"
	"github.com/covenant-hq/church-backend/pkg/utils"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidType  = errors.New("a new church must be a Headquarters or Independent church")
	ErrInvalidInput = errors.New("church name, admin name, email and password are required")
)

// Stores are the writers one onboarding transaction uses.
type Stores struct {
	Churches interface {
		Create(ctx context.Context, ch *models.Church) error
	}
	Users interface {
		Create(ctx context.Context, u *models.User) error
	}
	Subscriptions interface {
		Create(ctx context.Context, s *models.Subscription) error
	}
}

// TxRunner runs fn with stores bound to one transaction.
type TxRunner func(ctx context.Context, fn func(Stores) error) error

// NewPgxRunner returns a TxRunner over pool. bind builds the stores for a transaction.
func NewPgxRunner(pool *pgxpool.Pool, bind func(tx pgx.Tx) Stores) TxRunner {
	return func(ctx context.Context, fn func(Stores) error) error {
		return database.WithTx(ctx, pool, func(tx pgx.Tx) error {
			return fn(bind(tx))
		})
	}
}

// UserLookup checks for an existing account.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Service onboards churches.
type Service struct {
	run       TxRunner
	users     UserLookup
	plans     subscriptions.PlanRegistry
	trialDays int
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates an onboarding service.
func NewService(run TxRunner, users UserLookup, plans subscriptions.PlanRegistry, trialDays int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{run: run, users: users, plans: plans, trialDays: trialDays, now: time.Now, logger: logger}
}

// Request describes a new church and its administrator.
type Request struct {
	ChurchName string
	ChurchType models.ChurchType
	Country    string
	State      string
	City       string
	Currency   string
	AdminName  string
	Email      string
	Password   string
}

// Result is what onboarding created.
type Result struct {
	Church       *models.Church
	User         *models.User
	Subscription *models.Subscription
}

// Register creates the church, its churchadmin and a trial subscription on the entry plan in one
// transaction.
func (s *Service) Register(ctx context.Context, req Request) (*Result, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.ChurchName = strings.TrimSpace(req.ChurchName)
	req.AdminName = strings.TrimSpace(req.AdminName)
	if req.ChurchName == "" || req.AdminName == "" || req.Email == "" || req.Password == "" {
		return nil, ErrInvalidInput
	}
	if req.ChurchType == "" {
		req.ChurchType = models.ChurchIndependent
	}
	if req.ChurchType == models.ChurchBranch {
		return nil, ErrInvalidType
	}

	church := &models.Church{
		Name:     req.ChurchName,
		Type:     req.ChurchType,
		Country:  req.Country,
		State:    req.State,
		City:     req.City,
		Currency: strings.ToUpper(req.Currency),
	}
	if err := churches.ValidateHierarchy(church, nil); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	}
	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooShort) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	plan, err := s.plans.GetActiveByName(ctx, models.PlanFreeLite)
	if err != nil {
		return nil, fmt.Errorf("load entry plan: %w", err)
	}

	user := &models.User{Email: req.Email, PasswordHash: hash, FullName: req.AdminName, Role: models.RoleChurchAdmin, IsActive: true}
	var sub *models.Subscription
	err = s.run(ctx, func(st Stores) error {
		if err := st.Churches.Create(ctx, church); err != nil {
			return fmt.Errorf("create church: %w", err)
		}
		user.ChurchID = &church.ID
		if err := st.Users.Create(ctx, user); err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		sub = subscriptions.StartTrial(church.ID, plan.ID, s.trialDays, s.now())
		if err := st.Subscriptions.Create(ctx, sub); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		return nil
	})
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("church onboarded",
		zap.String("church_id", church.ID.String()),
		zap.String("type", string(church.Type)),
		zap.String("plan", plan.Name),
	)
	return &Result{Church: church, User: user, Subscription: sub}, nil
}

// CreateBranch creates branch under hq together with its own trial subscription.
func (s *Service) CreateBranch(ctx context.Context, hq *models.Church, branch *models.Church) error {
	branch.Type = models.ChurchBranch
	branch.ParentChurch = &hq.ID
	if branch.Currency == "" {
		branch.Currency = hq.Currency
	}
	if err := churches.ValidateHierarchy(branch, hq); err != nil {
		return err
	}
	plan, err := s.plans.GetActiveByName(ctx, models.PlanFreeLite)
	if err != nil {
		return fmt.Errorf("load entry plan: %w", err)
	}
	return s.run(ctx, func(st Stores) error {
		if err := st.Churches.Create(ctx, branch); err != nil {
			return fmt.Errorf("create branch: %w", err)
		}
		sub := subscriptions.StartTrial(branch.ID, plan.ID, s.trialDays, s.now())
		if err := st.Subscriptions.Create(ctx, sub); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		s.logger.Info("branch created", zap.String("hq_id", hq.ID.String()), zap.String("branch_id", branch.ID.String()))
		return nil
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
