package internal

import (
	"context"
	"errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"paygate/config"
	"paygate/entity"
	"paygate/internal/nvp"
	"paygate/services"
	"strings"
	"sync"
	"testing"
)

type providerCall struct {
	method  string
	token   string
	payerId string
	amount  string
	name    string
	urls    []string
}

type fakeProvider struct {
	mu            sync.Mutex
	calls         []providerCall
	token         string
	status        string
	amount        string
	transactionId string
	initiateErr   error
	fetchErr      error
	captureErr    error
}

func (f *fakeProvider) record(call providerCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeProvider) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	methods := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		methods = append(methods, call.method)
	}
	return methods
}

func (f *fakeProvider) Initiate(_ context.Context, amount decimal.Decimal, name, returnUrl, cancelUrl string) (string, error) {
	f.record(providerCall{method: "Initiate", amount: amount.String(), name: name, urls: []string{returnUrl, cancelUrl}})
	if f.initiateErr != nil {
		return "", f.initiateErr
	}
	return f.token, nil
}

func (f *fakeProvider) FetchStatus(_ context.Context, token string) (*entity.CheckoutDetails, error) {
	f.record(providerCall{method: "FetchStatus", token: token})
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &entity.CheckoutDetails{Token: token, Status: f.status, Amount: f.amount}, nil
}

func (f *fakeProvider) Capture(_ context.Context, token, payerId string, amount decimal.Decimal, name string) (string, error) {
	f.record(providerCall{method: "Capture", token: token, payerId: payerId, amount: amount.String(), name: name})
	if f.captureErr != nil {
		return "", f.captureErr
	}
	return f.transactionId, nil
}

type fakeDispatcher struct {
	dispatched []entity.Resource
	err        error
}

func (f *fakeDispatcher) Dispatch(w http.ResponseWriter, _ *http.Request, resource entity.Resource) error {
	if f.err != nil {
		return f.err
	}
	f.dispatched = append(f.dispatched, resource)
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write([]byte("%PDF " + resource.Name))
	return nil
}

type fakeDatabase struct {
	mu     sync.Mutex
	events []*entity.CheckoutEvent
	logs   []services.Data
}

func (f *fakeDatabase) WriteLogMessage(data services.Data) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, data)
	return nil
}

func (f *fakeDatabase) SaveCheckoutEvent(_ context.Context, event *entity.CheckoutEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type checkoutFixture struct {
	checkout   *Checkout
	provider   *fakeProvider
	dispatcher *fakeDispatcher
	database   *fakeDatabase
}

func newCheckoutFixture(t *testing.T, conf *config.Config) *checkoutFixture {
	t.Helper()
	catalog, err := ReadCatalog(strings.NewReader("novel=9.99\nmybook=15.00\nfree=0\n"), "USD", nil)
	require.NoError(t, err)

	f := &checkoutFixture{
		provider: &fakeProvider{
			token:         "ABC",
			status:        entity.StatusNotInitiated,
			transactionId: "TX1",
		},
		dispatcher: &fakeDispatcher{},
		database:   &fakeDatabase{},
	}
	f.checkout = NewCheckout(conf)
	f.checkout.SetLogger(NewLogger("checkout", true, nil))
	f.checkout.SetCatalog(catalog)
	f.checkout.SetProvider(f.provider)
	f.checkout.SetDispatcher(f.dispatcher)
	f.checkout.SetDatabase(f.database)
	return f
}

func (f *checkoutFixture) get(uri string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "http://shop.example"+uri, nil)
	w := httptest.NewRecorder()
	f.checkout.Handle(w, r)
	return w
}

func params(t *testing.T, uri string) *nvp.Params {
	t.Helper()
	p, err := nvp.ParseRequest(uri)
	require.NoError(t, err)
	return p
}

func TestClassify(t *testing.T) {
	tests := []struct {
		uri   string
		state State
	}{
		{"/novel", StateUnauthenticated},
		{"/novel?foo=bar", StateUnauthenticated},
		{"/novel?status=cancel", StateCancelled},
		{"/novel?status=CANCEL&token=T", StateCancelled},
		{"/novel?status=ok&token=T&PayerID=P", StateReturning},
		{"/novel?status=OK&token=T&PayerID=P", StateReturning},
		{"/novel?status=ok&token=T", StateInvalid},
		{"/novel?status=ok&token=T&PayerID=", StateInvalid},
		{"/novel?status=ok&token=&PayerID=P", StateInvalid},
		{"/novel?status=ok&PayerID=P", StateInvalid},
		{"/novel?status=done&token=T&PayerID=P", StateInvalid},
		{"/novel?token=T&PayerID=P", StateInvalid},
		{"/novel?status=", StateInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.state, Classify(params(t, tt.uri)))
		})
	}
}

func TestCheckoutInitiateRedirects(t *testing.T) {
	f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))

	w := f.get("/novel")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://checkout.example/webscr?cmd=_express-checkout&token=ABC", w.Header().Get("Location"))
	assert.Contains(t, w.Header().Get("Location"), "ABC")

	require.Len(t, f.provider.calls, 1)
	call := f.provider.calls[0]
	assert.Equal(t, "Initiate", call.method)
	assert.Equal(t, "9.99", call.amount)
	assert.Equal(t, "novel", call.name)
	assert.Equal(t, []string{"http://shop.example/novel?status=ok", "http://shop.example/novel?status=cancel"}, call.urls)
	assert.Empty(t, f.dispatcher.dispatched)
}

func TestCheckoutInContextRedirect(t *testing.T) {
	conf := testConfig("https://api.example/nvp")
	conf.Checkout.Type = config.CheckoutInContext
	conf.Checkout.PublicUrl = "https://books.example/"
	f := newCheckoutFixture(t, conf)

	w := f.get("/books/novel")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://checkout.example/checkoutnow?token=ABC", w.Header().Get("Location"))
	assert.Equal(t, "https://books.example/books/novel?status=ok", f.provider.calls[0].urls[0])
}

func TestCheckoutIgnoresCallerAmount(t *testing.T) {
	f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))

	w := f.get("/novel?AMOUNT=0.01")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "9.99", f.provider.calls[0].amount)
}

func TestCheckoutUnknownResource(t *testing.T) {
	for _, uri := range []string{"/missing", "/missing?status=ok&token=T&PayerID=P", "/missing?status=cancel", "/"} {
		t.Run(uri, func(t *testing.T) {
			f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))

			w := f.get(uri)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), MessageNotAvailable)
			assert.Empty(t, f.provider.methods())
		})
	}
}

func TestCheckoutRejectsZeroPrice(t *testing.T) {
	f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))

	decision := f.checkout.Decide(context.Background(), "/free", "http://shop.example/free")

	assert.Equal(t, ActionReject, decision.Action)
	assert.Equal(t, MessageInvalidItem, decision.Message)
	assert.True(t, errors.Is(decision.Err, ErrValidation))
	assert.Empty(t, f.provider.methods())
}

func TestCheckoutInitiateFailure(t *testing.T) {
	f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))
	f.provider.initiateErr = &ProviderError{Kind: ErrProviderBusiness, Method: entity.MethodSetExpressCheckout, Ack: "Failure"}

	w := f.get("/novel")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.NotContains(t, w.Body.String(), "Failure")
}

func TestCheckoutCancelled(t *testing.T) {
	f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))

	w := f.get("/novel?status=cancel&token=ABC")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), MessageCancelled)
	assert.Empty(t, f.provider.methods())
}

func TestCheckoutReturningCapturesAndDelivers(t *testing.T) {
	f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))

	w := f.get("/novel?status=ok&token=ABC&PayerID=XYZ")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF novel", w.Body.String())
	assert.Equal(t, []string{"FetchStatus", "Capture"}, f.provider.methods())
	assert.Equal(t, "ABC", f.provider.calls[0].token)
	capture := f.provider.calls[1]
	assert.Equal(t, "ABC", capture.token)
	assert.Equal(t, "XYZ", capture.payerId)
	assert.Equal(t, "9.99", capture.amount)
	require.Len(t, f.dispatcher.dispatched, 1)
	assert.Equal(t, "novel", f.dispatcher.dispatched[0].Name)

	require.Len(t, f.database.events, 1)
	event := f.database.events[0]
	assert.Equal(t, "returning", event.State)
	assert.Equal(t, "deliver", event.Outcome)
	assert.Equal(t, "TX1", event.TransactionId)
	assert.Equal(t, fingerprint("ABC"), event.TokenFingerprint)
	assert.NotEmpty(t, event.RequestId)
}

func TestCheckoutTokenAlreadyConsumed(t *testing.T) {
	for _, status := range []string{entity.StatusActionCompleted, entity.StatusCompleted, "paymentactioncompleted"} {
		t.Run(status, func(t *testing.T) {
			f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))
			f.provider.status = status

			decision := f.checkout.Decide(context.Background(), "/novel?status=ok&token=T2&PayerID=P", "http://shop.example/novel")

			assert.Equal(t, ActionReject, decision.Action)
			assert.Equal(t, http.StatusUnauthorized, decision.Status)
			assert.Equal(t, MessageTokenUsed, decision.Message)
			assert.True(t, errors.Is(decision.Err, ErrTokenConsumed))
			assert.Equal(t, []string{"FetchStatus"}, f.provider.methods())
		})
	}
}

func TestCheckoutUnexpectedCheckoutStatus(t *testing.T) {
	f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))
	f.provider.status = entity.StatusInProgress

	decision := f.checkout.Decide(context.Background(), "/novel?status=ok&token=T&PayerID=P", "http://shop.example/novel")

	assert.Equal(t, MessagePaymentFailed, decision.Message)
	assert.True(t, errors.Is(decision.Err, ErrProviderBusiness))
	assert.Equal(t, []string{"FetchStatus"}, f.provider.methods())
}

func TestCheckoutFetchStatusFailure(t *testing.T) {
	for _, kind := range []error{ErrProviderTransport, ErrProviderBusiness} {
		t.Run(kind.Error(), func(t *testing.T) {
			f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))
			f.provider.fetchErr = &ProviderError{Kind: kind, Method: entity.MethodGetExpressCheckoutDetails, Err: errors.New("boom")}

			w := f.get("/novel?status=ok&token=T&PayerID=P")

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), MessagePaymentFailed)
			assert.NotContains(t, w.Body.String(), "boom")
			assert.Equal(t, []string{"FetchStatus"}, f.provider.methods())
			assert.Empty(t, f.dispatcher.dispatched)
		})
	}
}

func TestCheckoutCaptureFailure(t *testing.T) {
	for _, kind := range []error{ErrProviderTransport, ErrProviderBusiness} {
		t.Run(kind.Error(), func(t *testing.T) {
			f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))
			f.provider.captureErr = &ProviderError{Kind: kind, Method: entity.MethodDoExpressCheckoutPayment}

			decision := f.checkout.Decide(context.Background(), "/novel?status=ok&token=T&PayerID=P", "http://shop.example/novel")

			assert.Equal(t, ActionReject, decision.Action)
			assert.Equal(t, MessagePaymentFailed, decision.Message)
			assert.True(t, errors.Is(decision.Err, kind))
			assert.Equal(t, []string{"FetchStatus", "Capture"}, f.provider.methods())
		})
	}
}

func TestCheckoutMissingPayerIdIsInvalid(t *testing.T) {
	f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))

	w := f.get("/novel?status=ok&token=ABC")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid URL")
	assert.Empty(t, f.provider.methods())
}

func TestCheckoutMalformedQuery(t *testing.T) {
	f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))

	decision := f.checkout.Decide(context.Background(), "/novel?token=A&token=B", "http://shop.example/novel")

	assert.Equal(t, StateInvalid, decision.State)
	assert.Equal(t, MessageInvalidRequest, decision.Message)
	assert.True(t, errors.Is(decision.Err, ErrParse))
	var parseErr *nvp.ParseError
	assert.True(t, errors.As(decision.Err, &parseErr))
	assert.Empty(t, f.provider.methods())
}

func TestCheckoutDispatchFailure(t *testing.T) {
	f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))
	f.dispatcher.err = newError(ErrDispatch, "dispatch novel", errors.New("no such file"))

	w := f.get("/novel?status=ok&token=ABC&PayerID=XYZ")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, f.database.events, 1)
	assert.Equal(t, http.StatusInternalServerError, f.database.events[0].Status)
}

func TestCheckoutFailsClosedWhenNotConfigured(t *testing.T) {
	conf := testConfig("https://api.example/nvp")
	conf.Provider.Signature = ""
	f := newCheckoutFixture(t, conf)

	for _, uri := range []string{"/novel", "/novel?status=ok&token=ABC&PayerID=XYZ"} {
		w := f.get(uri)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), MessageUnavailable)
	}
	assert.Empty(t, f.provider.methods())
	assert.Empty(t, f.dispatcher.dispatched)
}

func TestCheckoutUnknownCheckoutType(t *testing.T) {
	conf := testConfig("https://api.example/nvp")
	conf.Checkout.Type = "Popup"
	f := newCheckoutFixture(t, conf)

	decision := f.checkout.Decide(context.Background(), "/novel", "http://shop.example/novel")

	assert.True(t, errors.Is(decision.Err, ErrNotConfigured))
	assert.Empty(t, f.provider.methods())
}

func TestCheckoutPaymentDisabled(t *testing.T) {
	conf := testConfig("https://api.example/nvp")
	conf.DisablePayment = true
	f := newCheckoutFixture(t, conf)

	w := f.get("/novel")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.provider.methods())
	assert.Len(t, f.dispatcher.dispatched, 1)
}

func TestCheckoutPaymentDisabledWithoutProvider(t *testing.T) {
	conf := testConfig("")
	conf.DisablePayment = true
	conf.Provider.User = ""
	conf.Provider.Password = ""
	conf.Provider.Signature = ""
	f := newCheckoutFixture(t, conf)
	f.checkout.SetProvider(nil)

	for _, uri := range []string{"/novel", "/novel?status=ok&token=ABC&PayerID=XYZ"} {
		w := f.get(uri)
		assert.Equal(t, http.StatusOK, w.Code, uri)
	}
	assert.Len(t, f.dispatcher.dispatched, 2)
	assert.Empty(t, f.provider.methods())
}

func TestCheckoutEndToEnd(t *testing.T) {
	f := newCheckoutFixture(t, testConfig("https://api.example/nvp"))

	w := f.get("/novel")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "ABC")

	w = f.get("/novel?status=ok&token=ABC&PayerID=XYZ")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.dispatcher.dispatched, 1)

	// the provider now reports the checkout as completed
	f.provider.status = entity.StatusActionCompleted
	w = f.get("/novel?status=ok&token=ABC&PayerID=XYZ")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "already processed")
	assert.Len(t, f.dispatcher.dispatched, 1)

	assert.Equal(t, []string{"Initiate", "FetchStatus", "Capture", "FetchStatus"}, f.provider.methods())
	assert.Len(t, f.database.events, 3)
}

func TestFingerprint(t *testing.T) {
	assert.Empty(t, fingerprint(""))
	assert.Len(t, fingerprint("ABC"), 64)
	assert.Equal(t, fingerprint("ABC"), fingerprint("ABC"))
	assert.NotEqual(t, fingerprint("ABC"), fingerprint("ABD"))
}
