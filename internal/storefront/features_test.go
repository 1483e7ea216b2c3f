package storefront

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/acidic-storefront/internal/domain/cart"
	"github.com/xenking/acidic-storefront/internal/domain/checkout"
	"github.com/xenking/acidic-storefront/internal/domain/loyalty"
	"github.com/xenking/acidic-storefront/internal/domain/order"
	"github.com/xenking/acidic-storefront/internal/domain/payment"
	"github.com/xenking/acidic-storefront/internal/domain/product"
	"github.com/xenking/acidic-storefront/internal/domain/user"
	"github.com/xenking/acidic-storefront/internal/state"
)

const featureClient = "browser-1"

type countingProfiles struct {
	loyalty.ProfileStore
	saves int
}

func (c *countingProfiles) Save(ctx context.Context, p *loyalty.Profile) error {
	c.saves++
	return c.ProfileStore.Save(ctx, p)
}

type checkoutFeature struct {
	ctx      context.Context
	kv       *state.Memory
	catalog  *product.Memory
	orders   *order.Memory
	profiles *countingProfiles
	svc      *Service

	userID  string
	receipt *checkout.Receipt
	err     error
}

func (f *checkoutFeature) reset() {
	f.ctx = context.Background()
	f.kv = state.NewMemory()
	f.catalog = product.NewMemory()
	f.orders = order.NewMemory()
	f.profiles = &countingProfiles{ProfileStore: loyalty.NewStateStore(f.kv)}
	f.svc = New(Deps{
		State:    f.kv,
		Catalog:  f.catalog,
		Orders:   f.orders,
		Recorder: order.NewRecorder(f.orders),
		Loyalty:  loyalty.NewEngine(f.profiles),
		Payments: payment.Immediate{},
		Pricing:  cart.DefaultPricing(),
	})
	f.userID = ""
	f.receipt = nil
	f.err = nil
}

func (f *checkoutFeature) theCatalogHasAProductPriced(id string, price int) error {
	return f.catalog.Upsert(f.ctx, product.Product{ID: id, Name: id, Price: decimal.NewFromInt(int64(price))})
}

func (f *checkoutFeature) iAmSignedInAsWithPoints(userID string, points int) error {
	p := loyalty.NewProfile(userID)
	p.Points = int64(points)
	p.Tier = loyalty.TierForPoints(p.Points)
	p.Transactions = []loyalty.Transaction{{Type: loyalty.TransactionWelcome, Points: int64(points), TierAtTime: loyalty.TierBronze}}
	if err := f.profiles.ProfileStore.Save(f.ctx, &p); err != nil {
		return err
	}
	if _, err := f.svc.SignIn(f.ctx, featureClient, user.User{ID: userID, Name: "Shopper"}); err != nil {
		return err
	}
	f.userID = userID
	f.profiles.saves = 0
	return nil
}

func (f *checkoutFeature) iAmAGuest() error {
	return f.svc.SignOut(f.ctx, featureClient)
}

func (f *checkoutFeature) iAddToTheCart(qty int, id string) error {
	_, err := f.svc.AddItem(f.ctx, featureClient, AddItemRequest{ProductID: id, Quantity: qty})
	return err
}

func validFeatureAddress() user.Address {
	return user.Address{
		FullName:   "Sana Mir",
		Email:      "sana@example.com",
		Phone:      "03211234567",
		Street:     "9 Canal View",
		City:       "Lahore",
		PostalCode: "54000",
	}
}

func (f *checkoutFeature) iCheckOutWithAValidAddress() error {
	if _, err := f.svc.StartCheckout(f.ctx, featureClient); err != nil {
		return err
	}
	if _, err := f.svc.SubmitAddress(f.ctx, featureClient, validFeatureAddress()); err != nil {
		return err
	}
	r, err := f.svc.SubmitPayment(f.ctx, featureClient)
	if err != nil {
		return err
	}
	f.receipt = r
	return nil
}

func (f *checkoutFeature) theConfirmationRunsAgain() error {
	_, err := f.svc.ConfirmOrder(f.ctx, featureClient)
	return err
}

func (f *checkoutFeature) iStartCheckout() error {
	_, f.err = f.svc.StartCheckout(f.ctx, featureClient)
	return nil
}

func (f *checkoutFeature) iSubmitAnAddressWithEmailAndPostalCode(email, postal string) error {
	a := validFeatureAddress()
	a.Email = email
	a.PostalCode = postal
	_, f.err = f.svc.SubmitAddress(f.ctx, featureClient, a)
	return nil
}

func (f *checkoutFeature) theOrderGrandTotalIs(total int) error {
	if f.receipt == nil {
		return errors.New("no order")
	}
	if want := decimal.NewFromInt(int64(total)); !want.Equal(f.receipt.Order.GrandTotal) {
		return fmt.Errorf("grand total %s, want %s", f.receipt.Order.GrandTotal, want)
	}
	return nil
}

func (f *checkoutFeature) theOrderEarnsPoints(points int) error {
	if f.receipt == nil {
		return errors.New("no order")
	}
	if got := f.receipt.Order.PointsEarned; got != int64(points) {
		return fmt.Errorf("order earned %d points, want %d", got, points)
	}
	return nil
}

func (f *checkoutFeature) myBalanceIsPoints(points int) error {
	lv, err := f.svc.Loyalty(f.ctx, featureClient)
	if err != nil {
		return err
	}
	if lv.Profile.Points != int64(points) {
		return fmt.Errorf("balance %d, want %d", lv.Profile.Points, points)
	}
	return nil
}

func (f *checkoutFeature) myTierIs(tier string) error {
	lv, err := f.svc.Loyalty(f.ctx, featureClient)
	if err != nil {
		return err
	}
	if string(lv.Profile.Tier) != tier {
		return fmt.Errorf("tier %s, want %s", lv.Profile.Tier, tier)
	}
	return nil
}

func (f *checkoutFeature) theCartIsEmpty() error {
	view, err := f.svc.Cart(f.ctx, featureClient)
	if err != nil {
		return err
	}
	if len(view.Items) != 0 {
		return fmt.Errorf("cart has %d lines", len(view.Items))
	}
	return nil
}

func (f *checkoutFeature) ordersAreRecorded(n int) error {
	all, err := f.orders.ListByClient(f.ctx, featureClient)
	if err != nil {
		return err
	}
	if len(all) != n {
		return fmt.Errorf("%d orders recorded, want %d", len(all), n)
	}
	return nil
}

func (f *checkoutFeature) noLoyaltyProfileWasWritten() error {
	if f.profiles.saves != 0 {
		return fmt.Errorf("%d profile writes", f.profiles.saves)
	}
	return nil
}

func (f *checkoutFeature) theAddressIsRejectedFor(fields string) error {
	var vErr *checkout.ValidationError
	if !errors.As(f.err, &vErr) {
		return fmt.Errorf("expected validation error, got %v", f.err)
	}
	var got []string
	for _, fe := range vErr.Fields {
		got = append(got, fe.Name)
	}
	if strings.Join(got, ", ") != fields {
		return fmt.Errorf("invalid fields %q, want %q", strings.Join(got, ", "), fields)
	}
	return nil
}

func (f *checkoutFeature) checkoutFailsWith(msg string) error {
	if f.err == nil || !strings.Contains(f.err.Error(), msg) {
		return fmt.Errorf("error %v, want %q", f.err, msg)
	}
	return nil
}

func (f *checkoutFeature) theCheckoutStateIs(want string) error {
	cs, err := f.svc.Checkout(f.ctx, featureClient)
	if err != nil {
		return err
	}
	if cs.State.String() != want {
		return fmt.Errorf("state %s, want %s", cs.State, want)
	}
	return nil
}

func pointsIsTier(points int, tier string) error {
	if got := loyalty.TierForPoints(int64(points)); string(got) != tier {
		return fmt.Errorf("%d points is %s, want %s", points, got, tier)
	}
	return nil
}

func InitializeCheckoutScenario(ctx *godog.ScenarioContext) {
	f := &checkoutFeature{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		f.reset()
		return ctx, nil
	})

	ctx.Step(`^the catalog has a product "([^"]*)" priced (\d+)$`, f.theCatalogHasAProductPriced)
	ctx.Step(`^I am signed in as "([^"]*)" with (\d+) points$`, f.iAmSignedInAsWithPoints)
	ctx.Step(`^I am a guest$`, f.iAmAGuest)
	ctx.Step(`^I add (\d+) "([^"]*)" to the cart$`, f.iAddToTheCart)

	ctx.Step(`^I check out with a valid address$`, f.iCheckOutWithAValidAddress)
	ctx.Step(`^the confirmation runs again$`, f.theConfirmationRunsAgain)
	ctx.Step(`^I start checkout$`, f.iStartCheckout)
	ctx.Step(`^I submit an address with email "([^"]*)" and postal code "([^"]*)"$`, f.iSubmitAnAddressWithEmailAndPostalCode)

	ctx.Step(`^the order grand total is (\d+)$`, f.theOrderGrandTotalIs)
	ctx.Step(`^the order earns (\d+) points$`, f.theOrderEarnsPoints)
	ctx.Step(`^my balance is (\d+) points$`, f.myBalanceIsPoints)
	ctx.Step(`^my tier is "([^"]*)"$`, f.myTierIs)
	ctx.Step(`^the cart is empty$`, f.theCartIsEmpty)
	ctx.Step(`^(\d+) orders? (?:is|are) recorded$`, f.ordersAreRecorded)
	ctx.Step(`^no loyalty profile was written$`, f.noLoyaltyProfileWasWritten)
	ctx.Step(`^the address is rejected for "([^"]*)"$`, f.theAddressIsRejectedFor)
	ctx.Step(`^checkout fails with "([^"]*)"$`, f.checkoutFailsWith)
	ctx.Step(`^the checkout state is "([^"]*)"$`, f.theCheckoutStateIs)
	ctx.Step(`^(\d+) points is tier "([^"]*)"$`, pointsIsTier)
}

func TestCheckoutFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeCheckoutScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
