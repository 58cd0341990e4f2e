package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/ArowuTest/crm-campaign-backend/internal/audience"
	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories/memory"
	"github.com/ArowuTest/crm-campaign-backend/pkg/jwt"
)

func TestCreateCustomerNormalizesEmail(t *testing.T) {
	store := memory.NewStore()
	svc := NewCustomerService(store.Customers)
	ctx := context.Background()

	c, err := svc.CreateCustomer(ctx, &models.CreateCustomerRequest{Name: " Ada ", Email: "Ada@Example.COM"}, primitive.NewObjectID())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, "Ada", c.Name)

	_, err = svc.CreateCustomer(ctx, &models.CreateCustomerRequest{Name: "Other", Email: "ADA@example.com"}, primitive.NilObjectID)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = svc.GetCustomer(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrCustomerNotFound)

	list, total, err := svc.ListCustomers(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(1), total)
}

func TestCreateOrderUpdatesCustomerTotals(t *testing.T) {
	store := memory.NewStore()
	orders := NewOrderService(store.Orders, store.Customers)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	orders.now = func() time.Time { return now }
	ctx := context.Background()

	customer := &models.Customer{Name: "Ben", Email: "ben@example.com", TotalSpends: 100, VisitCount: 1}
	require.NoError(t, store.Customers.Create(ctx, customer))

	_, err := orders.CreateOrder(ctx, &models.CreateOrderRequest{
		OrderID: "ORD-1", CustomerID: customer.ID.Hex(), OrderAmount: 250.5, OrderDate: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	updated, err := store.Customers.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.InDelta(t, 350.5, updated.TotalSpends, 1e-9)
	assert.Equal(t, 2, updated.VisitCount)
	require.NotNil(t, updated.LastActiveDate)
	assert.True(t, now.Equal(*updated.LastActiveDate))

	_, err = orders.CreateOrder(ctx, &models.CreateOrderRequest{
		OrderID: "ORD-1", CustomerID: customer.ID.Hex(), OrderAmount: 1, OrderDate: now,
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = orders.CreateOrder(ctx, &models.CreateOrderRequest{
		OrderID: "ORD-2", CustomerID: primitive.NewObjectID().Hex(), OrderAmount: 1, OrderDate: now,
	})
	assert.ErrorIs(t, err, ErrCustomerNotFound)

	_, err = orders.CreateOrder(ctx, &models.CreateOrderRequest{
		OrderID: "ORD-3", CustomerID: "xyz", OrderAmount: 1, OrderDate: now,
	})
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestCreateSegment(t *testing.T) {
	store := memory.NewStore()
	svc := NewAudienceService(store.Customers, store.Segments, audience.NewCompiler())
	ctx := context.Background()
	user := primitive.NewObjectID()

	seg, err := svc.CreateSegment(ctx, &models.CreateSegmentRequest{Name: "Big spenders", Rules: bigSpenders}, user)
	require.NoError(t, err)
	assert.Equal(t, user, seg.CreatedBy)

	_, err = svc.CreateSegment(ctx, &models.CreateSegmentRequest{Name: "Big spenders", Rules: bigSpenders}, user)
	assert.ErrorIs(t, err, ErrDuplicateName)

	_, err = svc.CreateSegment(ctx, &models.CreateSegmentRequest{Name: "Broken", Rules: models.RuleGroup{
		Conditions: []models.RuleCondition{{Field: models.FieldName, Operator: models.OpGreaterThan, Value: "a"}},
	}}, user)
	assert.ErrorIs(t, err, audience.ErrUnsupportedOperator)

	got, err := svc.GetSegment(ctx, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Big spenders", got.Name)

	_, err = svc.GetSegment(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrSegmentNotFound)

	all, err := svc.ListSegments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRegisterAndLogin(t *testing.T) {
	store := memory.NewStore()
	tokens := jwt.NewTokenService("test-secret", time.Hour)
	svc := NewAuthService(store.Users, tokens)
	svc.cost = bcrypt.MinCost
	ctx := context.Background()

	reg, err := svc.Register(ctx, &models.RegisterRequest{FullName: "Ops", Email: "Ops@Example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", reg.User.Email)
	assert.NotEqual(t, "password123", reg.User.Password)

	claims, err := tokens.Parse(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID.Hex(), claims.Subject)

	_, err = svc.Register(ctx, &models.RegisterRequest{FullName: "Dup", Email: "ops@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	login, err := svc.Login(ctx, &models.LoginRequest{Email: "OPS@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "ops@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
