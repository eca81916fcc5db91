package notifications

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/config"
	"github.com/persiamall/storefront/pkg/db/dbtest"
	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/enums"
	"github.com/persiamall/storefront/pkg/sms"
)

type fakeProvider struct {
	name   enums.SMSProvider
	result sms.Result
	calls  *[]string
}

func (f fakeProvider) Name() enums.SMSProvider { return f.name }

func (f fakeProvider) Send(_ context.Context, msg sms.Message) sms.Result {
	*f.calls = append(*f.calls, fmt.Sprintf("%s:%s", f.name, msg.To))
	return f.result
}

// fakeFactory returns the scripted result for each api key, so two configs of
// the same kind can behave differently.
type fakeFactory struct {
	results map[string]sms.Result
	calls   []string
}

func (f *fakeFactory) Build(kind enums.SMSProvider, creds sms.Credentials) (sms.Provider, error) {
	res, ok := f.results[creds.APIKey]
	if !ok {
		return nil, fmt.Errorf("no script for %q", creds.APIKey)
	}
	return fakeProvider{name: kind, result: res, calls: &f.calls}, nil
}

func seedProvider(t *testing.T, conn *gorm.DB, storeID *uuid.UUID, kind enums.SMSProvider, apiKey string, priority int, isDefault bool) models.SMSProviderConfig {
	t.Helper()
	cfg := models.SMSProviderConfig{StoreID: storeID, Provider: kind, APIKey: apiKey, Priority: priority, IsDefault: isDefault, IsActive: true}
	require.NoError(t, conn.Create(&cfg).Error)
	return cfg
}

func newTestDispatcher(t *testing.T, conn *gorm.DB, factory *fakeFactory, cfg config.SMSConfig) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(NewRepository(conn), factory, cfg, nil, nil)
	require.NoError(t, err)
	return d
}

func TestDispatcherFallsBackToNextProvider(t *testing.T) {
	conn := dbtest.Open(t)
	seed := dbtest.SeedCatalog(t, conn, "sms.example.ir", 1000, 1)
	storeID := seed.Store.ID

	winner := seedProvider(t, conn, &storeID, enums.SMSProviderGhasedak, "third", 2, false)
	seedProvider(t, conn, &storeID, enums.SMSProviderKavenegar, "first", 5, true)
	seedProvider(t, conn, &storeID, enums.SMSProviderGhasedak, "second", 1, false)

	factory := &fakeFactory{results: map[string]sms.Result{
		"first":  {Reason: "kavenegar: credit exhausted"},
		"second": {Reason: "ghasedak: timeout"},
		"third":  {OK: true, MessageID: "m-1"},
	}}
	d := newTestDispatcher(t, conn, factory, config.SMSConfig{})

	res := d.SendDetailed(context.Background(), storeID, "09121234567", sms.TemplateOTPLogin, map[string]string{"code": "123456", "expiry_minutes": "5"})
	require.True(t, res.OK)
	assert.Equal(t, "m-1", res.MessageID)
	assert.Equal(t, []string{"kavenegar:09121234567", "ghasedak:09121234567", "ghasedak:09121234567"}, factory.calls)

	var logs []models.SMSMessage
	require.NoError(t, conn.Order("created_at ASC").Find(&logs).Error)
	require.Len(t, logs, 3)
	statuses := map[enums.SMSMessageStatus]int{}
	for _, l := range logs {
		statuses[l.Status]++
		assert.NotContains(t, l.Body, "123456")
		assert.Contains(t, l.Body, seed.Store.Name)
	}
	assert.Equal(t, 2, statuses[enums.SMSMessageStatusFailed])
	assert.Equal(t, 1, statuses[enums.SMSMessageStatusSent])

	var reloaded models.SMSProviderConfig
	require.NoError(t, conn.First(&reloaded, "id = ?", winner.ID).Error)
	assert.EqualValues(t, 1, reloaded.TotalSent)
}

func TestDispatcherOrdersStoreBeforePlatformBeforeDefaults(t *testing.T) {
	conn := dbtest.Open(t)
	seed := dbtest.SeedCatalog(t, conn, "order.example.ir", 1000, 1)
	storeID := seed.Store.ID

	seedProvider(t, conn, nil, enums.SMSProviderGhasedak, "platform", 0, true)
	seedProvider(t, conn, &storeID, enums.SMSProviderKavenegar, "store", 0, true)

	factory := &fakeFactory{results: map[string]sms.Result{
		"store":    {Reason: "down"},
		"platform": {Reason: "down"},
		"":         {OK: true},
	}}
	cfg := config.SMSConfig{DefaultProviders: []string{"kavenegar", "ghasedak"}, Debug: true}
	d := newTestDispatcher(t, conn, factory, cfg)

	ok := d.Send(context.Background(), storeID, "09121234567", sms.TemplateWelcome, map[string]string{"name": "سارا", "store_name": "فروشگاه"})
	require.True(t, ok)
	assert.Equal(t, []string{
		"kavenegar:09121234567",
		"ghasedak:09121234567",
		"console:09121234567",
	}, factory.calls)
}

func TestDispatcherAllFailReturnsLastReason(t *testing.T) {
	conn := dbtest.Open(t)
	seedProvider(t, conn, nil, enums.SMSProviderKavenegar, "a", 0, true)
	seedProvider(t, conn, nil, enums.SMSProviderGhasedak, "b", 1, false)

	factory := &fakeFactory{results: map[string]sms.Result{
		"a": {Reason: "first failure"},
		"b": {Reason: "second failure"},
	}}
	d := newTestDispatcher(t, conn, factory, config.SMSConfig{})

	res := d.SendDetailed(context.Background(), uuid.Nil, "09121234567", sms.TemplateOTPRegister, map[string]string{"code": "1111", "expiry_minutes": "5"})
	assert.False(t, res.OK)
	assert.Equal(t, "second failure", res.Reason)

	var count int64
	require.NoError(t, conn.Model(&models.SMSMessage{}).Where("status = ?", enums.SMSMessageStatusFailed).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestDispatcherWithoutProviders(t *testing.T) {
	conn := dbtest.Open(t)
	d := newTestDispatcher(t, conn, &fakeFactory{results: map[string]sms.Result{}}, config.SMSConfig{})

	res := d.SendDetailed(context.Background(), uuid.Nil, "09121234567", sms.TemplateOTPLogin, map[string]string{"code": "1"})
	assert.False(t, res.OK)
	assert.Equal(t, reasonNoProviders, res.Reason)
}

func TestDispatcherUnknownTemplate(t *testing.T) {
	conn := dbtest.Open(t)
	d := newTestDispatcher(t, conn, &fakeFactory{}, config.SMSConfig{})
	assert.False(t, d.Send(context.Background(), uuid.Nil, "09121234567", sms.Template("nope"), nil))
}
