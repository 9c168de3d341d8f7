package services

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vinin2308/foodflow-cardapio/models"
	"github.com/vinin2308/foodflow-cardapio/store"
)

// recordingPublisher captures every published snapshot in order.
type recordingPublisher struct {
	mu    sync.Mutex
	codes []string
	snaps []*FamilySnapshot
}

func (p *recordingPublisher) Publish(code string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes = append(p.codes, code)
	if snap, ok := data.(*FamilySnapshot); ok {
		p.snaps = append(p.snaps, snap)
	}
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.codes)
}

func setupTestService(t *testing.T) (*TabService, *recordingPublisher) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Table{}, &models.Category{}, &models.Dish{},
		&models.Tab{}, &models.TabItem{}, &models.TabMember{},
		&models.Payment{},
	)
	require.NoError(t, err)

	db.Create(&models.Table{Number: 7, Capacity: 4, Status: models.TableAvailable, Active: true})
	db.Create(&models.Category{Name: "Mains", Active: true})
	db.Create(&models.Dish{CategoryID: 1, Name: "Feijoada", Price: 42.5, Active: true})
	db.Create(&models.Dish{CategoryID: 1, Name: "Moqueca", Price: 55.0, Active: true})

	logger := logrus.New()
	publisher := &recordingPublisher{}
	return NewTabService(store.NewTabStore(db), publisher, logger), publisher
}

func TestSubmitTabCollectsAllViolations(t *testing.T) {
	svc, publisher := setupTestService(t)

	_, err := svc.SubmitTab(SubmitTabCommand{
		Items: []SubmitItem{
			{MenuItemID: 1, Quantity: 0},
			{MenuItemID: 999, Quantity: 2},
		},
	})

	var validation *store.ValidationError
	require.ErrorAs(t, err, &validation)
	// missing table number, zero quantity and unknown dish all reported at once
	assert.Len(t, validation.Violations, 3)
	assert.Equal(t, 0, publisher.count())
}

func TestSubmitTabPublishesSnapshot(t *testing.T) {
	svc, publisher := setupTestService(t)

	snap, err := svc.SubmitTab(SubmitTabCommand{
		TableNumber:  7,
		CustomerName: "Ana",
		Items: []SubmitItem{
			{MenuItemID: 1, Quantity: 2},
			{MenuItemID: 2, Quantity: 1, Note: "sem pimenta"},
		},
		ActorKey: "device-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 7, snap.Principal.TableNumber)
	assert.Equal(t, "Ana", snap.Principal.CustomerName)
	assert.Len(t, snap.Principal.Items, 2)
	assert.InDelta(t, 2*42.5+55.0, snap.Principal.Total, 0.001)

	require.Equal(t, 1, publisher.count())
	assert.Equal(t, snap.AccessCode, publisher.codes[0])
}

func TestStartComandaReusesOpenPrincipal(t *testing.T) {
	svc, _ := setupTestService(t)

	code1, err := svc.StartComanda(7, "", nil)
	require.NoError(t, err)

	code2, err := svc.StartComanda(7, "Bia", nil)
	require.NoError(t, err)
	assert.Equal(t, code1, code2)

	snap, err := svc.FamilySnapshot(code1)
	require.NoError(t, err)
	// blank name was filled in on reuse
	assert.Equal(t, "Bia", snap.Principal.CustomerName)
	assert.Equal(t, 1, snap.TotalTabs)
}

func TestStartComandaUnknownTable(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.StartComanda(99, "", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMutateItemPublishesInOrder(t *testing.T) {
	svc, publisher := setupTestService(t)

	code, err := svc.StartComanda(7, "Ana", nil)
	require.NoError(t, err)
	snap, err := svc.FamilySnapshot(code)
	require.NoError(t, err)
	tabID := snap.Principal.ID
	publishedBefore := publisher.count()

	for i := 0; i < 3; i++ {
		_, err := svc.MutateItem(ItemCommand{
			Action:     ActionAddItem,
			TabID:      tabID,
			MenuItemID: 1,
			Quantity:   1,
			ActorKey:   "device-1",
		})
		require.NoError(t, err)
	}

	require.Equal(t, publishedBefore+3, publisher.count())
	// each published snapshot reflects one more item than the previous
	for i := 0; i < 3; i++ {
		assert.Len(t, publisher.snaps[publishedBefore+i].Principal.Items, i+1)
	}
}

func TestMutateItemUnknownAction(t *testing.T) {
	svc, _ := setupTestService(t)

	code, err := svc.StartComanda(7, "", nil)
	require.NoError(t, err)
	snap, _ := svc.FamilySnapshot(code)

	_, err = svc.MutateItem(ItemCommand{Action: "explode", TabID: snap.Principal.ID})
	var validation *store.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestMutateItemRejectsForeignItem(t *testing.T) {
	svc, _ := setupTestService(t)

	codeA, err := svc.StartComanda(7, "", nil)
	require.NoError(t, err)
	snapA, _ := svc.FamilySnapshot(codeA)

	withItem, err := svc.MutateItem(ItemCommand{
		Action: ActionAddItem, TabID: snapA.Principal.ID, MenuItemID: 1, Quantity: 1,
	})
	require.NoError(t, err)
	itemID := withItem.Principal.Items[0].ID

	childSnap, err := svc.SubmitTab(SubmitTabCommand{
		ParentTabID:  &snapA.Principal.ID,
		CustomerName: "Bia",
	})
	require.NoError(t, err)
	childID := childSnap.Children[0].ID

	// the item lives on the principal, not the child
	_, err = svc.MutateItem(ItemCommand{
		Action: ActionRemoveItem, TabID: childID, ItemID: itemID,
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransitionLifecycleReleasesTableAndRecordsPayment(t *testing.T) {
	svc, _ := setupTestService(t)

	snap, err := svc.SubmitTab(SubmitTabCommand{
		TableNumber: 7,
		Items:       []SubmitItem{{MenuItemID: 2, Quantity: 2}},
	})
	require.NoError(t, err)
	tabID := snap.Principal.ID

	for _, action := range []string{ActionStartPreparation, ActionFinalize, ActionDeliver} {
		snap, err = svc.TransitionStatus(tabID, action, "")
		require.NoError(t, err)
	}
	assert.Equal(t, models.StatusDelivered, snap.Principal.Status)

	snap, err = svc.TransitionStatus(tabID, ActionPay, models.PaymentPix)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, snap.Principal.Status)

	var table models.Table
	require.NoError(t, svc.Store().DB().First(&table, 1).Error)
	assert.Equal(t, models.TableAvailable, table.Status)

	// ledger write is asynchronous
	assert.Eventually(t, func() bool {
		var count int64
		svc.Store().DB().Model(&models.Payment{}).Where("tab_id = ?", tabID).Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)

	var payment models.Payment
	require.NoError(t, svc.Store().DB().Where("tab_id = ?", tabID).First(&payment).Error)
	assert.Equal(t, models.PaymentPix, payment.Method)
	assert.InDelta(t, 110.0, payment.Amount, 0.001)
}

func TestTransitionRejectsSkippingStates(t *testing.T) {
	svc, _ := setupTestService(t)

	snap, err := svc.SubmitTab(SubmitTabCommand{TableNumber: 7})
	require.NoError(t, err)

	_, err = svc.TransitionStatus(snap.Principal.ID, ActionDeliver, "")
	var transition *store.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.StatusPending, transition.From)
	assert.Equal(t, models.StatusDelivered, transition.To)
}

func TestClosedTabRejectsMutations(t *testing.T) {
	svc, publisher := setupTestService(t)

	snap, err := svc.SubmitTab(SubmitTabCommand{TableNumber: 7})
	require.NoError(t, err)
	tabID := snap.Principal.ID

	_, err = svc.TransitionStatus(tabID, ActionCancel, "")
	require.NoError(t, err)
	publishedBefore := publisher.count()

	_, err = svc.MutateItem(ItemCommand{
		Action: ActionAddItem, TabID: tabID, MenuItemID: 1, Quantity: 1,
	})
	assert.ErrorIs(t, err, store.ErrTabClosed)

	_, err = svc.ReplaceItems(tabID, []SubmitItem{{MenuItemID: 1, Quantity: 1}}, "device-1")
	assert.ErrorIs(t, err, store.ErrTabClosed)

	// failed mutations never publish
	assert.Equal(t, publishedBefore, publisher.count())
}

func TestReplaceItemsLastWriterWins(t *testing.T) {
	svc, _ := setupTestService(t)

	snap, err := svc.SubmitTab(SubmitTabCommand{
		TableNumber: 7,
		Items:       []SubmitItem{{MenuItemID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	tabID := snap.Principal.ID

	replaced, err := svc.ReplaceItems(tabID, []SubmitItem{
		{MenuItemID: 2, Quantity: 3},
	}, "device-2")
	require.NoError(t, err)

	require.Len(t, replaced.Principal.Items, 1)
	assert.Equal(t, uint(2), replaced.Principal.Items[0].MenuItemID)
	assert.Equal(t, 3, replaced.Principal.Items[0].Quantity)
}

func TestJoinFamilyGeneratesDeviceKey(t *testing.T) {
	svc, _ := setupTestService(t)

	code, err := svc.StartComanda(7, "", nil)
	require.NoError(t, err)

	snap, key, err := svc.JoinFamily(code, "")
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, code, snap.AccessCode)

	// joining again with the same key is a no-op
	_, key2, err := svc.JoinFamily(code, key)
	require.NoError(t, err)
	assert.Equal(t, key, key2)

	var count int64
	svc.Store().DB().Model(&models.TabMember{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSetEstimate(t *testing.T) {
	svc, _ := setupTestService(t)

	snap, err := svc.SubmitTab(SubmitTabCommand{TableNumber: 7})
	require.NoError(t, err)

	updated, err := svc.SetEstimate(snap.Principal.ID, 25)
	require.NoError(t, err)
	require.NotNil(t, updated.Principal.EstimatedMinutes)
	assert.Equal(t, 25, *updated.Principal.EstimatedMinutes)

	_, err = svc.SetEstimate(snap.Principal.ID, -5)
	var validation *store.ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestKitchenTabsFiltersByStatus(t *testing.T) {
	svc, _ := setupTestService(t)

	snap, err := svc.SubmitTab(SubmitTabCommand{TableNumber: 7})
	require.NoError(t, err)
	_, err = svc.TransitionStatus(snap.Principal.ID, ActionStartPreparation, "")
	require.NoError(t, err)

	preparing, err := svc.KitchenTabs(models.StatusInPreparation)
	require.NoError(t, err)
	assert.Len(t, preparing, 1)

	pending, err := svc.KitchenTabs(models.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
