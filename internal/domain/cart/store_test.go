package cart

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/acidic-storefront/internal/domain/product"
	"github.com/xenking/acidic-storefront/internal/state"
)

// --- Mock implementations ---

type failingStorage struct {
	Storage
	saveErr error
}

func (f *failingStorage) Save(ctx context.Context, items []LineItem) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Storage.Save(ctx, items)
}

type mockCatalog struct {
	byID map[string]*product.Product
}

func (m *mockCatalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

// --- Helpers ---

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestProduct(id string, price int64) product.Product {
	return product.Product{
		ID:     id,
		Name:   "Product " + id,
		Price:  decimal.NewFromInt(price),
		Images: []string{id + ".jpg"},
		Variants: product.Variants{
			Colors: []string{"black", "white"},
			Sizes:  []string{"M", "L"},
		},
	}
}

func openStore(t *testing.T, kv state.Store, clientID string) *Store {
	t.Helper()
	s, err := Open(context.Background(), NewStateStorage(kv, clientID), DefaultPricing(),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	return s
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// --- Tests ---

func TestStore_AddItemMergesSameVariant(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, state.NewMemory(), "c1")
	p := newTestProduct("p1", 200)
	v := Variant{Color: "black", Size: "M"}

	require.NoError(t, s.AddItem(ctx, p, v, 2))
	require.NoError(t, s.AddItem(ctx, p, v, 3))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, "p1.jpg", items[0].Image)
	assert.Equal(t, testNow, items[0].AddedAt)

	require.NoError(t, s.AddItem(ctx, p, Variant{Color: "white", Size: "M"}, 1))
	assert.Equal(t, 2, s.Len(), "other color is a separate line")
}

func TestStore_AddItemLimits(t *testing.T) {
	ctx := context.Background()
	p := newTestProduct("p1", 10)
	v := Variant{Color: "black", Size: "L"}

	tests := []struct {
		name    string
		initial int
		add     int
		wantErr error
		wantQty int
	}{
		{name: "up to limit", initial: 90, add: 9, wantQty: 99},
		{name: "over limit", initial: 90, add: 10, wantErr: ErrQuantityLimitExceeded, wantQty: 90},
		{name: "new line over limit", add: 100, wantErr: ErrQuantityLimitExceeded},
		{name: "zero", add: 0, wantErr: ErrInvalidQuantity},
		{name: "negative", initial: 1, add: -1, wantErr: ErrInvalidQuantity, wantQty: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openStore(t, state.NewMemory(), "c1")
			if tt.initial > 0 {
				require.NoError(t, s.AddItem(ctx, p, v, tt.initial))
			}

			err := s.AddItem(ctx, p, v, tt.add)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			items := s.Items()
			if tt.wantQty == 0 {
				assert.Empty(t, items)
				return
			}
			require.Len(t, items, 1)
			assert.Equal(t, tt.wantQty, items[0].Quantity)
		})
	}
}

func TestStore_AddItemUnknownVariant(t *testing.T) {
	s := openStore(t, state.NewMemory(), "c1")

	err := s.AddItem(context.Background(), newTestProduct("p1", 10), Variant{Color: "red", Size: "M"}, 1)
	require.ErrorIs(t, err, product.ErrUnknownVariant)
	assert.Zero(t, s.Len())
}

func TestStore_Totals(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, state.NewMemory(), "c1")

	empty := s.Totals()
	requireDecimal(t, "0", empty.GrandTotal)
	requireDecimal(t, "0", empty.DeliveryFee)

	require.NoError(t, s.AddItem(ctx, newTestProduct("p1", 200), Variant{Color: "black", Size: "M"}, 1))
	require.NoError(t, s.AddItem(ctx, newTestProduct("p2", 35), Variant{Color: "white", Size: "L"}, 3))
	require.NoError(t, s.AddCustomizedItem(ctx, newTestProduct("p3", 100), Variant{Color: "black", Size: "L"}, 2, decimal.NewFromInt(25)))

	for range 3 {
		totals := s.Totals()
		requireDecimal(t, "555", totals.Subtotal)
		requireDecimal(t, "150", totals.DeliveryFee)
		requireDecimal(t, "705", totals.GrandTotal)
		assert.Equal(t, 6, totals.ItemCount)
	}

	var sum decimal.Decimal
	for _, it := range s.Items() {
		sum = sum.Add(it.Total())
	}
	requireDecimal(t, sum.String(), s.Totals().Subtotal)
}

func TestTotals_Discounted(t *testing.T) {
	items := []LineItem{{ProductID: "p1", UnitPrice: decimal.NewFromInt(200), Quantity: 1}}
	taxed := Pricing{DeliveryFee: DefaultDeliveryFee, TaxRate: decimal.NewFromInt(10)}

	for _, tt := range []struct {
		name      string
		pricing   Pricing
		discount  int64
		wantTax   string
		wantGrand string
	}{
		{name: "untaxed", pricing: DefaultPricing(), discount: 20, wantTax: "0", wantGrand: "330"},
		{name: "taxed after discount", pricing: taxed, discount: 20, wantTax: "18", wantGrand: "348"},
		{name: "no discount", pricing: taxed, discount: 0, wantTax: "20", wantGrand: "370"},
		{name: "discount above subtotal", pricing: taxed, discount: 500, wantTax: "0", wantGrand: "150"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(items, tt.pricing).Discounted(decimal.NewFromInt(tt.discount), tt.pricing)
			requireDecimal(t, "200", got.Subtotal)
			requireDecimal(t, tt.wantTax, got.Tax)
			requireDecimal(t, tt.wantGrand, got.GrandTotal)
		})
	}
}

func TestStore_RemoveItem(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, state.NewMemory(), "c1")
	require.NoError(t, s.AddItem(ctx, newTestProduct("p1", 200), Variant{Color: "black", Size: "M"}, 1))

	err := s.RemoveItem(ctx, 3)
	var idxErr *IndexOutOfRangeError
	require.ErrorAs(t, err, &idxErr)
	assert.Equal(t, 3, idxErr.Index)
	assert.Equal(t, 1, idxErr.Len)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.RemoveItem(ctx, 0))
	totals := s.Totals()
	requireDecimal(t, "0", totals.Subtotal)
	requireDecimal(t, "0", totals.GrandTotal)
}

func TestStore_SetQuantity(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, state.NewMemory(), "c1")
	p := newTestProduct("p1", 20)
	require.NoError(t, s.AddItem(ctx, p, Variant{Color: "black", Size: "M"}, 1))
	require.NoError(t, s.AddItem(ctx, p, Variant{Color: "white", Size: "M"}, 1))

	require.NoError(t, s.SetQuantity(ctx, 1, 7))
	assert.Equal(t, 7, s.Items()[1].Quantity)

	require.ErrorIs(t, s.SetQuantity(ctx, 1, 100), ErrQuantityLimitExceeded)
	assert.Equal(t, 7, s.Items()[1].Quantity)

	require.ErrorIs(t, s.SetQuantity(ctx, -1, 2), ErrIndexOutOfRange)

	require.NoError(t, s.SetQuantity(ctx, 0, 0))
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "white", items[0].Variant.Color)
}

func TestStore_SaveFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemory()
	fs := &failingStorage{Storage: NewStateStorage(kv, "c1")}
	s, err := Open(ctx, fs, DefaultPricing())
	require.NoError(t, err)
	require.NoError(t, s.AddItem(ctx, newTestProduct("p1", 10), Variant{Color: "black", Size: "M"}, 1))

	fs.saveErr = errors.New("disk full")
	require.Error(t, s.AddItem(ctx, newTestProduct("p2", 10), Variant{Color: "black", Size: "M"}, 1))
	require.Error(t, s.SetQuantity(ctx, 0, 5))
	require.Error(t, s.Clear(ctx))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)

	stored, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemory()
	s := openStore(t, kv, "c1")
	require.NoError(t, s.AddItem(ctx, newTestProduct("p1", 200), Variant{Color: "black", Size: "M"}, 2))
	require.NoError(t, s.AddCustomizedItem(ctx, newTestProduct("p2", 49), Variant{Color: "white", Size: "L"}, 1, decimal.RequireFromString("9.99")))
	require.NoError(t, s.AddItem(ctx, newTestProduct("p3", 15), Variant{Color: "black", Size: "L"}, 4))

	reopened := openStore(t, kv, "c1")

	assert.Equal(t, string(MarshalDocument(s.Items())), string(MarshalDocument(reopened.Items())))
	before, after := s.Totals(), reopened.Totals()
	requireDecimal(t, before.Subtotal.String(), after.Subtotal)
	requireDecimal(t, before.GrandTotal.String(), after.GrandTotal)
	assert.Equal(t, before.ItemCount, after.ItemCount)

	other := openStore(t, kv, "c2")
	assert.Zero(t, other.Len())
}

func TestStore_MutationsSeeOtherWriters(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemory()
	tab1 := openStore(t, kv, "c1")
	tab2 := openStore(t, kv, "c1")
	v := Variant{Color: "black", Size: "M"}

	require.NoError(t, tab1.AddItem(ctx, newTestProduct("p1", 10), v, 1))
	require.NoError(t, tab2.AddItem(ctx, newTestProduct("p2", 10), v, 1))

	assert.Equal(t, 2, tab2.Len(), "read-modify-write keeps the other tab's line")

	require.NoError(t, tab1.Reload(ctx))
	assert.Equal(t, 2, tab1.Len())
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemory()
	s := openStore(t, kv, "c1")
	require.NoError(t, s.AddItem(ctx, newTestProduct("p1", 10), Variant{Color: "black", Size: "M"}, 1))

	require.NoError(t, s.Clear(ctx))
	assert.Zero(t, s.Len())
	assert.Zero(t, openStore(t, kv, "c1").Len())
}

func TestStore_Refresh(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, state.NewMemory(), "c1")
	v := Variant{Color: "black", Size: "M"}
	require.NoError(t, s.AddItem(ctx, newTestProduct("p1", 100), v, 1))
	require.NoError(t, s.AddItem(ctx, newTestProduct("gone", 40), v, 1))

	updated := newTestProduct("p1", 120)
	updated.Name = "Renamed"
	changed, err := s.Refresh(ctx, &mockCatalog{byID: map[string]*product.Product{"p1": &updated}})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	items := s.Items()
	assert.Equal(t, "Renamed", items[0].Name)
	requireDecimal(t, "120", items[0].UnitPrice)
	assert.Equal(t, "Product gone", items[1].Name, "missing product keeps snapshot")
	requireDecimal(t, "40", items[1].UnitPrice)
}

func TestStateStorage_MigratesLegacyKey(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemory()
	legacy := `[{"id":"p1","name":"Tee","price":200,"quantity":2,"color":"black","size":"M","customized":false}]`
	require.NoError(t, kv.Set(ctx, "c1", state.KeyLegacyCart, []byte(legacy)))

	s := openStore(t, kv, "c1")
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	requireDecimal(t, "200", items[0].UnitPrice)

	_, err := kv.Get(ctx, "c1", state.KeyLegacyCart)
	require.ErrorIs(t, err, state.ErrNotFound)
	_, err = kv.Get(ctx, "c1", state.KeyCart)
	require.NoError(t, err)

	migrated, err := NewStateStorage(kv, "c1").Migrate(ctx)
	require.NoError(t, err)
	assert.False(t, migrated, "migration runs once")
}

func TestStateStorage_CanonicalKeyWins(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemory()
	require.NoError(t, kv.Set(ctx, "c1", state.KeyCart, MarshalDocument(nil)))
	require.NoError(t, kv.Set(ctx, "c1", state.KeyLegacyCart, []byte(`[{"id":"p1","price":1,"quantity":1}]`)))

	s := openStore(t, kv, "c1")
	assert.Zero(t, s.Len())

	_, err := kv.Get(ctx, "c1", state.KeyLegacyCart)
	assert.ErrorIs(t, err, state.ErrNotFound, "leftover legacy key is removed")
}

func TestStateStorage_LeftoverLegacyKeyRemovedOnReopen(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemory()
	legacy := []byte(`[{"id":"p1","price":10,"quantity":2}]`)
	require.NoError(t, kv.Set(ctx, "c1", state.KeyLegacyCart, legacy))

	// Canonical written, legacy delete lost.
	items, err := UnmarshalDocument(legacy)
	require.NoError(t, err)
	require.NoError(t, NewStateStorage(kv, "c1").Save(ctx, items))

	s := openStore(t, kv, "c1")
	require.Equal(t, 1, s.Len())
	assert.Equal(t, 2, s.Items()[0].Quantity)

	_, err = kv.Get(ctx, "c1", state.KeyLegacyCart)
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestStateStorage_ClampsStoredQuantities(t *testing.T) {
	for _, tt := range []struct {
		name string
		key  state.Key
		data string
		want int
	}{
		{name: "legacy over limit", key: state.KeyLegacyCart, data: `[{"id":"p1","price":10,"quantity":150}]`, want: 99},
		{name: "legacy zero", key: state.KeyLegacyCart, data: `[{"id":"p1","price":10,"quantity":0}]`, want: 1},
		{name: "canonical negative", key: state.KeyCart, data: `{"version":2,"items":[{"productId":"p1","unitPrice":"10","quantity":-3}]}`, want: 1},
		{name: "canonical over limit", key: state.KeyCart, data: `{"version":2,"items":[{"productId":"p1","unitPrice":"10","quantity":500}]}`, want: 99},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := state.NewMemory()
			require.NoError(t, kv.Set(ctx, "c1", tt.key, []byte(tt.data)))

			s := openStore(t, kv, "c1")
			items := s.Items()
			require.Len(t, items, 1)
			assert.Equal(t, tt.want, items[0].Quantity)

			totals := s.Totals()
			requireDecimal(t, decimal.NewFromInt(int64(10*tt.want)).String(), totals.Subtotal)
		})
	}
}

func TestUnmarshalDocument(t *testing.T) {
	items, err := UnmarshalDocument([]byte(`{"version":2,"items":[{"productId":"p1","unitPrice":"12.50","quantity":3,"addedAt":"2026-03-01T12:00:00Z"}]}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	requireDecimal(t, "12.5", items[0].UnitPrice)
	assert.Equal(t, testNow, items[0].AddedAt)

	_, err = UnmarshalDocument([]byte(`"nope"`))
	require.Error(t, err)

	_, err = UnmarshalDocument([]byte(`[{"name":"no id"}]`))
	require.Error(t, err)
}
