// Package testing provides test utilities and database setup for testing the sync pipeline
package testing

import (
	"fmt"
	"math/rand"

	"github.com/aisleworks/shelfsync/models"
	"github.com/aisleworks/shelfsync/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestStore creates a company and a store under it
func (tf *TestFixtures) CreateTestStore() (*models.Store, error) {
	company := &models.Company{
		Name:     fmt.Sprintf("Test Grocer %d", rand.Intn(100000)),
		IsActive: utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(company).Error; err != nil {
		return nil, fmt.Errorf("failed to create test company: %w", err)
	}

	store := &models.Store{
		CompanyID:    company.ID,
		Name:         fmt.Sprintf("Store %d", rand.Intn(100000)),
		LocationCode: fmt.Sprintf("LOC-%04d", rand.Intn(10000)),
		IsActive:     utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(store).Error; err != nil {
		return nil, fmt.Errorf("failed to create test store: %w", err)
	}
	return store, nil
}

// CreateTestGateway creates a gateway in the given store
func (tf *TestFixtures) CreateTestGateway(storeID uint) (*models.Gateway, error) {
	gateway := &models.Gateway{
		GatewayMAC: fmt.Sprintf("AA:BB:CC:%02X:%02X:%02X", rand.Intn(256), rand.Intn(256), rand.Intn(256)),
		StoreID:    storeID,
		IsOnline:   utils.ToPtr(true),
		IsActive:   utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(gateway).Error; err != nil {
		return nil, fmt.Errorf("failed to create test gateway: %w", err)
	}
	return gateway, nil
}

// CreateTestHardwareProfile creates a display profile with the given geometry
func (tf *TestFixtures) CreateTestHardwareProfile(width, height int, scheme models.ColorScheme) (*models.HardwareProfile, error) {
	profile := &models.HardwareProfile{
		ModelNumber:     fmt.Sprintf("EPD-%dx%d-%s-%d", width, height, scheme, rand.Intn(100000)),
		WidthPx:         width,
		HeightPx:        height,
		ColorScheme:     scheme,
		DisplaySizeInch: 2.9,
	}
	if err := tf.DB.DB.Create(profile).Error; err != nil {
		return nil, fmt.Errorf("failed to create test hardware profile: %w", err)
	}
	return profile, nil
}

// CreateTestProduct creates a product in the given store
func (tf *TestFixtures) CreateTestProduct(storeID uint, price float64, onSpecial bool) (*models.Product, error) {
	product := &models.Product{
		StoreID:     storeID,
		SKU:         fmt.Sprintf("%012d", rand.Int63n(1000000000000)),
		Name:        "Organic Whole Milk 2L",
		Price:       price,
		IsOnSpecial: utils.ToPtr(onSpecial),
	}
	if err := tf.DB.DB.Create(product).Error; err != nil {
		return nil, fmt.Errorf("failed to create test product: %w", err)
	}
	return product, nil
}

// CreateTestTag creates a tag on the given gateway. Product and profile may be
// zero to create an unpaired (non-syncable) tag.
func (tf *TestFixtures) CreateTestTag(gatewayID uint, productID, profileID *uint) (*models.Tag, error) {
	tag := &models.Tag{
		Serial:            fmt.Sprintf("TAG%09d", rand.Intn(1000000000)),
		GatewayID:         gatewayID,
		PairedProductID:   productID,
		HardwareProfileID: profileID,
		SyncState:         models.SyncStateIdle,
		TemplateID:        1,
		BatteryLevel:      100,
	}
	if err := tf.DB.DB.Create(tag).Error; err != nil {
		return nil, fmt.Errorf("failed to create test tag: %w", err)
	}
	return tag, nil
}

// CreateTestFleet creates a full syncable chain: store, gateway, profile,
// product, and one paired tag
func (tf *TestFixtures) CreateTestFleet() (*models.Tag, error) {
	store, err := tf.CreateTestStore()
	if err != nil {
		return nil, err
	}
	gateway, err := tf.CreateTestGateway(store.ID)
	if err != nil {
		return nil, err
	}
	profile, err := tf.CreateTestHardwareProfile(296, 128, models.ColorSchemeBWR)
	if err != nil {
		return nil, err
	}
	product, err := tf.CreateTestProduct(store.ID, 12.99, false)
	if err != nil {
		return nil, err
	}
	return tf.CreateTestTag(gateway.ID, &product.ID, &profile.ID)
}
