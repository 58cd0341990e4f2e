package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ArowuTest/crm-campaign-backend/internal/audience"
	"github.com/ArowuTest/crm-campaign-backend/internal/models"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories"
	"github.com/ArowuTest/crm-campaign-backend/internal/repositories/memory"
	"github.com/ArowuTest/crm-campaign-backend/pkg/vendor"
)

type fakeSender struct {
	mu   sync.Mutex
	reqs []vendor.SendRequest
	err  error
}

func (f *fakeSender) Send(_ context.Context, req vendor.SendRequest) (*vendor.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &vendor.SendResponse{Status: "accepted", VendorMessageID: "m-" + req.CommunicationLogID}, nil
}

func (f *fakeSender) requests() []vendor.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vendor.SendRequest(nil), f.reqs...)
}

type testEnv struct {
	store     *memory.Store
	sender    *fakeSender
	audiences *AudienceServiceImpl
	campaigns *CampaignServiceImpl
	delivery  *DeliveryServiceImpl
	user      primitive.ObjectID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	sender := &fakeSender{}
	audiences := NewAudienceService(store.Customers, store.Segments, audience.NewCompiler())
	campaigns := NewCampaignService(store.Campaigns, store.Logs, audiences, sender, CampaignOptions{
		CallbackURL: "http://crm.test/api/v1/webhooks/delivery-receipts",
		MaxInFlight: 4,
	})
	return &testEnv{
		store:     store,
		sender:    sender,
		audiences: audiences,
		campaigns: campaigns,
		delivery:  NewDeliveryService(store.Logs, store.Campaigns),
		user:      primitive.NewObjectID(),
	}
}

func (e *testEnv) addCustomer(t *testing.T, name string, spends float64) *models.Customer {
	t.Helper()
	c := &models.Customer{Name: name, Email: name + "@example.com", TotalSpends: spends, VisitCount: 2}
	require.NoError(t, e.store.Customers.Create(context.Background(), c))
	return c
}

func (e *testEnv) createCampaign(t *testing.T, rules models.RuleGroup) *models.Campaign {
	t.Helper()
	campaign, result, err := e.campaigns.CreateCampaign(context.Background(), &models.CreateCampaignRequest{
		Name:            "Spring promo",
		AudienceRules:   rules,
		MessageTemplate: "Hi {{name}}, you have spent {{totalSpends}} with us",
	}, e.user)
	require.NoError(t, err)
	require.Nil(t, result)
	return campaign
}

func (e *testEnv) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.campaigns.Wait(ctx))
}

func (e *testEnv) campaign(t *testing.T, id primitive.ObjectID) *models.Campaign {
	t.Helper()
	c, err := e.store.Campaigns.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (e *testEnv) logs(t *testing.T, id primitive.ObjectID) []*models.CommunicationLog {
	t.Helper()
	logs, err := e.store.Logs.FindByCampaignID(context.Background(), id, 1, 0)
	require.NoError(t, err)
	return logs
}

func (e *testEnv) receipt(t *testing.T, logID primitive.ObjectID, status string) {
	t.Helper()
	_, err := e.delivery.ProcessReceipt(context.Background(), &models.DeliveryReceipt{
		CommunicationLogID: logID.Hex(),
		Status:             status,
		VendorMessageID:    "m-" + logID.Hex(),
		Timestamp:          time.Now().UTC(),
	})
	require.NoError(t, err)
}

var bigSpenders = models.RuleGroup{
	LogicalOperator: models.LogicalAnd,
	Conditions: []models.RuleCondition{
		{Field: models.FieldTotalSpends, Operator: models.OpGreaterThan, Value: float64(1000)},
	},
}

func TestPreviewCountsMatchingCustomers(t *testing.T) {
	env := newTestEnv(t)
	env.addCustomer(t, "low", 500)
	env.addCustomer(t, "high", 1500)

	res, err := env.audiences.Preview(context.Background(), bigSpenders)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.AudienceSize)
	assert.Empty(t, res.Message)
}

func TestPreviewEmptyRulesTargetsEveryone(t *testing.T) {
	env := newTestEnv(t)
	env.addCustomer(t, "a", 1)
	env.addCustomer(t, "b", 2)

	res, err := env.audiences.Preview(context.Background(), models.RuleGroup{LogicalOperator: models.LogicalAnd})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.AudienceSize)
	assert.Equal(t, everyoneNote, res.Message)
}

func TestPreviewOnlyEmptyGroupsSelectsNobody(t *testing.T) {
	env := newTestEnv(t)
	env.addCustomer(t, "a", 1)

	res, err := env.audiences.Preview(context.Background(), models.RuleGroup{
		LogicalOperator: models.LogicalAnd,
		Groups:          []models.RuleGroup{{LogicalOperator: models.LogicalOr}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.AudienceSize)
}

func TestPreviewInvalidRules(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.audiences.Preview(context.Background(), models.RuleGroup{Conditions: []models.RuleCondition{
		{Field: models.FieldLastActiveDate, Operator: models.OpOlderThanDays, Value: "a while"},
	}})
	var verrs audience.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.ErrorIs(t, err, audience.ErrInvalidRuleValue)
}

func TestDispatchAllReceiptsSentCompletesCampaign(t *testing.T) {
	env := newTestEnv(t)
	for _, n := range []string{"ann", "ben", "cat"} {
		env.addCustomer(t, n, 2000)
	}
	env.addCustomer(t, "dan", 10)

	campaign := env.createCampaign(t, bigSpenders)
	assert.Equal(t, models.CampaignStatusDraft, campaign.Status)
	assert.Equal(t, 3, campaign.AudienceSize)

	result, err := env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	require.NoError(t, err)
	assert.Equal(t, 3, result.AudienceSize)
	assert.Equal(t, 3, result.Initiated)
	assert.Equal(t, models.CampaignStatusSending, result.Status)
	env.wait(t)

	logs := env.logs(t, campaign.ID)
	require.Len(t, logs, 3)
	seen := map[primitive.ObjectID]bool{}
	for _, l := range logs {
		assert.False(t, seen[l.CustomerID], "duplicate log for customer")
		seen[l.CustomerID] = true
		assert.Equal(t, models.MessageStatusPending, l.Status)
		assert.Contains(t, l.Message, "you have spent 2000 with us")
	}
	assert.Len(t, env.sender.requests(), 3)

	for i, l := range logs {
		env.receipt(t, l.ID, models.MessageStatusSent)
		current := env.campaign(t, campaign.ID)
		if i < 2 {
			assert.Equal(t, models.CampaignStatusSending, current.Status)
		}
	}

	final := env.campaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, final.Status)
	assert.Equal(t, 3, final.SentCount)
	assert.Equal(t, 0, final.FailedCount)
	assert.Equal(t, 3, final.AudienceSize)
}

func TestDispatchEmptyAudienceCompletesImmediately(t *testing.T) {
	env := newTestEnv(t)
	env.addCustomer(t, "low", 5)

	campaign := env.createCampaign(t, bigSpenders)
	result, err := env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, result.Status)
	assert.Equal(t, 0, result.Initiated)
	env.wait(t)

	final := env.campaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, final.Status)
	assert.Equal(t, 0, final.AudienceSize)
	assert.Empty(t, env.logs(t, campaign.ID))
	assert.Empty(t, env.sender.requests())
}

func TestDispatchRejectedWhileSending(t *testing.T) {
	env := newTestEnv(t)
	env.addCustomer(t, "high", 5000)
	campaign := env.createCampaign(t, bigSpenders)

	_, err := env.store.Campaigns.BeginDispatch(context.Background(), campaign.ID)
	require.NoError(t, err)
	before := env.campaign(t, campaign.ID)

	_, err = env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	assert.ErrorIs(t, err, ErrCampaignStateConflict)

	after := env.campaign(t, campaign.ID)
	assert.Equal(t, before, after)
	assert.Empty(t, env.logs(t, campaign.ID))
}

func TestDispatchRejectedWhenCompleted(t *testing.T) {
	env := newTestEnv(t)
	campaign := env.createCampaign(t, bigSpenders)
	_, err := env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	require.NoError(t, err)

	_, err = env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	assert.ErrorIs(t, err, ErrCampaignStateConflict)
}

func TestDispatchUnknownCampaign(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.campaigns.Dispatch(context.Background(), primitive.NewObjectID(), env.user)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestDispatchResolveErrorMarksFailedAndAllowsRetry(t *testing.T) {
	env := newTestEnv(t)
	env.addCustomer(t, "high", 5000)

	campaign := &models.Campaign{
		Name: "Broken",
		AudienceRules: models.RuleGroup{Conditions: []models.RuleCondition{
			{Field: models.FieldLastActiveDate, Operator: models.OpInLastDays, Value: "soon"},
		}},
		MessageTemplate: "Hello {{name}}!!",
		Status:          models.CampaignStatusDraft,
	}
	require.NoError(t, env.store.Campaigns.Create(context.Background(), campaign))

	_, err := env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	require.Error(t, err)
	assert.ErrorIs(t, err, audience.ErrInvalidRuleValue)

	failed := env.campaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusFailed, failed.Status)
	assert.Contains(t, failed.FailureReason, "Audience resolution failed")

	// FAILED is eligible for another run
	_, err = env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	assert.ErrorIs(t, err, audience.ErrInvalidRuleValue)
	assert.NotErrorIs(t, err, ErrCampaignStateConflict)
}

func TestRetryFromFailedResetsLogs(t *testing.T) {
	env := newTestEnv(t)
	env.addCustomer(t, "high", 5000)
	campaign := env.createCampaign(t, bigSpenders)

	_, err := env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	require.NoError(t, err)
	env.wait(t)
	first := env.logs(t, campaign.ID)
	require.Len(t, first, 1)
	env.receipt(t, first[0].ID, models.MessageStatusFailed)
	require.Equal(t, models.CampaignStatusCompleted, env.campaign(t, campaign.ID).Status)

	// force the campaign back to FAILED and run it again
	require.NoError(t, env.store.Campaigns.MarkFailed(context.Background(), campaign.ID, "operator retry"))
	_, err = env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	require.NoError(t, err)
	env.wait(t)

	second := env.logs(t, campaign.ID)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, models.MessageStatusPending, second[0].Status)
	assert.Nil(t, second[0].FailedAt)
	assert.Empty(t, second[0].FailureReason)

	current := env.campaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusSending, current.Status)
	assert.Equal(t, 0, current.FailedCount)
	assert.Empty(t, current.FailureReason)
}

func TestDispatchVendorFailureRecordedAgainstLog(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = &vendor.DispatchError{Err: errors.New("connection refused")}
	env.addCustomer(t, "high", 5000)
	env.addCustomer(t, "higher", 9000)
	campaign := env.createCampaign(t, bigSpenders)

	result, err := env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Initiated)
	env.wait(t)

	for _, l := range env.logs(t, campaign.ID) {
		assert.Equal(t, models.MessageStatusFailed, l.Status)
		assert.Contains(t, l.FailureReason, "Network error")
		assert.NotNil(t, l.FailedAt)
	}
	final := env.campaign(t, campaign.ID)
	assert.Equal(t, 2, final.FailedCount)
	assert.Equal(t, models.CampaignStatusCompleted, final.Status)
}

func TestDispatchVendorErrorStatus(t *testing.T) {
	env := newTestEnv(t)
	env.sender.err = &vendor.DispatchError{StatusCode: 503, Body: "busy"}
	env.addCustomer(t, "high", 5000)
	campaign := env.createCampaign(t, bigSpenders)

	_, err := env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	require.NoError(t, err)
	env.wait(t)

	logs := env.logs(t, campaign.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "Vendor API error: 503 busy", logs[0].FailureReason)
}

func TestCreateCampaignDispatchesWhenConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.campaigns.opts.DispatchOnCreate = true
	env.addCustomer(t, "high", 5000)

	campaign, result, err := env.campaigns.CreateCampaign(context.Background(), &models.CreateCampaignRequest{
		Name:            "Eager",
		AudienceRules:   bigSpenders,
		MessageTemplate: "Thanks {{name}} for shopping",
		Tags:            []string{"vip"},
	}, env.user)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Initiated)
	assert.Equal(t, models.CampaignStatusSending, campaign.Status)
	assert.Equal(t, []string{"vip"}, campaign.Tags)
	env.wait(t)

	// the explicit trigger is refused while the eager run is in flight
	_, err = env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	assert.ErrorIs(t, err, ErrCampaignStateConflict)
}

func TestReceiptCounters(t *testing.T) {
	env := newTestEnv(t)
	env.addCustomer(t, "a", 5000)
	env.addCustomer(t, "b", 5000)
	env.addCustomer(t, "c", 5000)
	campaign := env.createCampaign(t, bigSpenders)
	_, err := env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	require.NoError(t, err)
	env.wait(t)
	logs := env.logs(t, campaign.ID)
	require.Len(t, logs, 3)

	env.receipt(t, logs[0].ID, models.MessageStatusSent)
	c := env.campaign(t, campaign.ID)
	assert.Equal(t, 1, c.SentCount)
	assert.Equal(t, 0, c.FailedCount)

	_, err = env.delivery.ProcessReceipt(context.Background(), &models.DeliveryReceipt{
		CommunicationLogID: logs[1].ID.Hex(),
		Status:             models.MessageStatusFailed,
		VendorMessageID:    "m-2",
		Timestamp:          time.Now(),
	})
	require.NoError(t, err)
	c = env.campaign(t, campaign.ID)
	assert.Equal(t, 1, c.SentCount)
	assert.Equal(t, 1, c.FailedCount)

	failedLog, err := env.store.Logs.FindByID(context.Background(), logs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultVendorFailureReason, failedLog.FailureReason)
	assert.Nil(t, failedLog.SentAt)

	// engagement statuses are stored without touching counters
	env.receipt(t, logs[0].ID, models.MessageStatusOpened)
	c = env.campaign(t, campaign.ID)
	assert.Equal(t, 1, c.SentCount)
	assert.Equal(t, models.CampaignStatusSending, c.Status)

	env.receipt(t, logs[2].ID, models.MessageStatusDelivered)
	c = env.campaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, c.Status)

	// later receipts do not reopen or re-complete the campaign
	env.receipt(t, logs[2].ID, models.MessageStatusDelivered)
	c = env.campaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, c.Status)
}

func TestConcurrentReceiptsCompleteOnce(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 20; i++ {
		env.addCustomer(t, "c"+primitive.NewObjectID().Hex(), 5000)
	}
	campaign := env.createCampaign(t, bigSpenders)
	_, err := env.campaigns.Dispatch(context.Background(), campaign.ID, env.user)
	require.NoError(t, err)
	env.wait(t)

	logs := env.logs(t, campaign.ID)
	require.Len(t, logs, 20)

	var wg sync.WaitGroup
	for _, l := range logs {
		wg.Add(1)
		go func(id primitive.ObjectID) {
			defer wg.Done()
			_, err := env.delivery.ProcessReceipt(context.Background(), &models.DeliveryReceipt{
				CommunicationLogID: id.Hex(),
				Status:             models.MessageStatusSent,
				VendorMessageID:    "m",
				Timestamp:          time.Now(),
			})
			assert.NoError(t, err)
		}(l.ID)
	}
	wg.Wait()

	final := env.campaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, final.Status)
	assert.Equal(t, 20, final.SentCount)
}

func TestReceiptErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.delivery.ProcessReceipt(ctx, &models.DeliveryReceipt{
		CommunicationLogID: "not-an-id", Status: models.MessageStatusSent, VendorMessageID: "m", Timestamp: time.Now(),
	})
	assert.ErrorIs(t, err, ErrInvalidReceipt)

	_, err = env.delivery.ProcessReceipt(ctx, &models.DeliveryReceipt{
		CommunicationLogID: primitive.NewObjectID().Hex(), Status: "BOUNCED", VendorMessageID: "m", Timestamp: time.Now(),
	})
	assert.ErrorIs(t, err, ErrInvalidReceipt)

	_, err = env.delivery.ProcessReceipt(ctx, &models.DeliveryReceipt{
		CommunicationLogID: primitive.NewObjectID().Hex(), Status: models.MessageStatusSent, VendorMessageID: "m", Timestamp: time.Now(),
	})
	assert.ErrorIs(t, err, ErrLogNotFound)
}

// ctxLogRepo fails like the Mongo driver once ctx is done and cancels the
// caller's context after cancelAfter upserts
type ctxLogRepo struct {
	repositories.CommunicationLogRepository
	mu          sync.Mutex
	upserts     int
	cancelAfter int
	cancel      context.CancelFunc
}

func (r *ctxLogRepo) Upsert(ctx context.Context, log *models.CommunicationLog) (*models.CommunicationLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := r.CommunicationLogRepository.Upsert(ctx, log)
	r.mu.Lock()
	r.upserts++
	if r.upserts == r.cancelAfter {
		r.cancel()
	}
	r.mu.Unlock()
	return entry, err
}

type ctxCampaignRepo struct {
	repositories.CampaignRepository
}

func (r ctxCampaignRepo) IncrementCounters(ctx context.Context, id primitive.ObjectID, sent, failed int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.CampaignRepository.IncrementCounters(ctx, id, sent, failed)
}

func (r ctxCampaignRepo) CompleteIfDelivered(ctx context.Context, id primitive.ObjectID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return r.CampaignRepository.CompleteIfDelivered(ctx, id)
}

func TestDispatchOutlivesCancelledRequest(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"ada", "ben", "cy", "dee"} {
		env.addCustomer(t, name, 5000)
	}
	campaign := env.createCampaign(t, bigSpenders)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logs := &ctxLogRepo{CommunicationLogRepository: env.store.Logs, cancelAfter: 2, cancel: cancel}
	campaigns := ctxCampaignRepo{CampaignRepository: env.store.Campaigns}
	svc := NewCampaignService(campaigns, logs, env.audiences, env.sender, CampaignOptions{
		CallbackURL: "http://crm.test/api/v1/webhooks/delivery-receipts",
		MaxInFlight: 4,
	})

	result, err := svc.Dispatch(ctx, campaign.ID, env.user)
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, 4, result.Initiated)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, svc.Wait(waitCtx))

	entries := env.logs(t, campaign.ID)
	require.Len(t, entries, 4)
	for _, entry := range entries {
		env.receipt(t, entry.ID, models.MessageStatusSent)
	}

	final := env.campaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, final.Status)
	assert.Equal(t, 4, final.SentCount)
	assert.Equal(t, 0, final.FailedCount)
}
