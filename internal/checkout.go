package internal

import (
	"context"
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
	"html"
	"net/http"
	"paygate/config"
	"paygate/entity"
	"paygate/internal/nvp"
	"paygate/services"
	"strings"
	"time"
)

// Query parameters the provider appends when it sends the buyer back.
const (
	paramToken   = "token"
	paramStatus  = "status"
	paramPayerId = "PayerID"

	statusOk     = "ok"
	statusCancel = "cancel"
)

// Messages shown to the buyer. Provider details never reach the response body.
const (
	MessageNotAvailable   = "Requested resource is not available!"
	MessageInvalidItem    = "Invalid Download URL either item name or amount is missing"
	MessageCancelled      = "Payment has been cancelled by the user. Make the payment via PayPal to download."
	MessageTokenUsed      = "This token was already processed and it can not be used any more. Download can be success only when you make new payment via PayPal."
	MessagePaymentFailed  = "Payment has been failed. Download can be success only when you make the payment via PayPal."
	MessageInvalidRequest = "Unable to process the request. Invalid URL!!!"
	MessageUnavailable    = "Payment service is not available. Please try again later."
)

// State is the checkout phase of a request, derived from its parameters alone.
type State int

const (
	StateUnauthenticated State = iota
	StateCancelled
	StateReturning
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateCancelled:
		return "cancelled"
	case StateReturning:
		return "returning"
	}
	return "invalid"
}

// Classify maps request parameters to a checkout state:
//
//	no token and no status                      -> Unauthenticated
//	status=cancel                               -> Cancelled
//	token, PayerID both non-empty and status=ok -> Returning
//	anything else                               -> Invalid
func Classify(params *nvp.Params) State {
	if !params.Has(paramToken) && !params.Has(paramStatus) {
		return StateUnauthenticated
	}
	if params.Is(paramStatus, statusCancel) {
		return StateCancelled
	}
	if params.Value(paramToken) != "" && params.Value(paramPayerId) != "" && params.Is(paramStatus, statusOk) {
		return StateReturning
	}
	return StateInvalid
}

type Action int

const (
	ActionReject Action = iota
	ActionRedirect
	ActionDeliver
)

func (a Action) String() string {
	switch a {
	case ActionRedirect:
		return "redirect"
	case ActionDeliver:
		return "deliver"
	}
	return "reject"
}

// Decision is what the gate does with one request.
type Decision struct {
	Action        Action
	State         State
	Status        int
	Message       string
	Location      string
	Request       entity.CheckoutRequest
	TransactionId string
	Err           error
}

// Checkout runs the Express Checkout flow for download requests. No checkout state is
// kept between requests: the provider is asked every time whether a token was consumed.
type Checkout struct {
	conf        *config.Config
	checkoutUrl string
	configErr   error
	catalog     services.Catalog
	provider    services.Provider
	dispatcher  services.Dispatcher
	database    services.Database
	logger      services.LogHandler
}

// NewCheckout creates the orchestrator. An incomplete configuration is not fatal here,
// but every request is then rejected.
func NewCheckout(conf *config.Config) *Checkout {
	c := &Checkout{
		conf:        conf,
		checkoutUrl: conf.CheckoutUrl(),
	}
	if missing := conf.Missing(); len(missing) > 0 {
		c.configErr = newError(ErrNotConfigured, "configure", fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}
	return c
}

func (c *Checkout) SetCatalog(catalog services.Catalog) {
	c.catalog = catalog
}

func (c *Checkout) SetProvider(provider services.Provider) {
	c.provider = provider
}

func (c *Checkout) SetDispatcher(dispatcher services.Dispatcher) {
	c.dispatcher = dispatcher
}

func (c *Checkout) SetDatabase(database services.Database) {
	c.database = database
}

func (c *Checkout) SetLogger(logger services.LogHandler) {
	c.logger = logger
	if c.conf.DisablePayment {
		c.logger.Warn("payment disabled: resources are served without checkout")
	}
	if c.configErr != nil {
		c.logger.Error("checkout", c.configErr)
	}
}

// Handle answers one download request: a redirect to the provider, the resource itself,
// or an error page.
func (c *Checkout) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestID(r.Context())

	requestUri := r.RequestURI
	if requestUri == "" {
		requestUri = r.URL.RequestURI()
	}
	decision := c.Decide(ctx, requestUri, c.appUrl(r))

	switch decision.Action {
	case ActionRedirect:
		w.Header().Set("Location", decision.Location)
		w.WriteHeader(decision.Status)
	case ActionDeliver:
		if err := c.dispatcher.Dispatch(w, r, decision.Request.Resource); err != nil {
			decision.Status = http.StatusInternalServerError
			decision.Err = err
			w.WriteHeader(http.StatusInternalServerError)
		}
	default:
		sendResponse(w, decision.Status, decision.Message)
	}

	c.report(ctx, decision)
}

func (c *Checkout) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.Handle(w, r)
}

// Decide classifies the request and performs the provider calls its state requires.
// appUrl is the absolute URL of the resource without query; the provider returns
// the buyer there.
func (c *Checkout) Decide(ctx context.Context, requestUri, appUrl string) *Decision {
	if err := c.ready(); err != nil {
		return reject(StateInvalid, entity.CheckoutRequest{}, MessageUnavailable, err)
	}

	params, err := nvp.ParseRequest(requestUri)
	if err != nil {
		return reject(StateInvalid, entity.CheckoutRequest{}, MessageInvalidRequest, newError(ErrParse, "parse request", err))
	}

	state := Classify(params)
	request := entity.CheckoutRequest{
		Resource: entity.Resource{Name: params.Value(nvp.KeyName)},
		Token:    params.Value(paramToken),
		PayerId:  params.Value(paramPayerId),
		Status:   params.Value(paramStatus),
	}

	resource, err := c.catalog.Lookup(request.Resource.Name)
	if err != nil {
		return reject(state, request, MessageNotAvailable, err)
	}
	request.Resource = resource

	switch state {
	case StateUnauthenticated:
		return c.initiate(ctx, request, appUrl)
	case StateCancelled:
		return reject(state, request, MessageCancelled, nil)
	case StateReturning:
		return c.complete(ctx, request)
	}
	return reject(state, request, MessageInvalidRequest, newError(ErrParse, "classify request", fmt.Errorf("unexpected parameters")))
}

func (c *Checkout) initiate(ctx context.Context, request entity.CheckoutRequest, appUrl string) *Decision {
	resource := request.Resource
	if resource.Name == "" || !resource.Price.IsPositive() {
		return reject(StateUnauthenticated, request, MessageInvalidItem,
			newError(ErrValidation, "validate "+resource.Name, fmt.Errorf("price %s", resource.Price)))
	}

	if c.conf.DisablePayment {
		return &Decision{
			Action:  ActionDeliver,
			State:   StateUnauthenticated,
			Status:  http.StatusOK,
			Request: request,
		}
	}

	token, err := c.provider.Initiate(ctx, resource.Price, resource.Name, appUrl+"?status=ok", appUrl+"?status=cancel")
	if err != nil {
		return reject(StateUnauthenticated, request, MessageUnavailable, err)
	}
	request.Token = token

	return &Decision{
		Action:   ActionRedirect,
		State:    StateUnauthenticated,
		Status:   http.StatusFound,
		Location: c.checkoutUrl + token,
		Request:  request,
	}
}

// complete verifies the returning token with the provider and captures the payment.
// A token whose checkout is already completed is refused without a capture; this is
// the only guard against replaying a return URL.
func (c *Checkout) complete(ctx context.Context, request entity.CheckoutRequest) *Decision {
	if c.conf.DisablePayment {
		return &Decision{
			Action:  ActionDeliver,
			State:   StateReturning,
			Status:  http.StatusOK,
			Request: request,
		}
	}

	details, err := c.provider.FetchStatus(ctx, request.Token)
	if err != nil {
		return reject(StateReturning, request, MessagePaymentFailed, err)
	}

	switch {
	case strings.EqualFold(details.Status, entity.StatusCompleted),
		strings.EqualFold(details.Status, entity.StatusActionCompleted):
		return reject(StateReturning, request, MessageTokenUsed,
			newError(ErrTokenConsumed, "fetch status", fmt.Errorf("checkout status %s", details.Status)))
	case strings.EqualFold(details.Status, entity.StatusNotInitiated):
	default:
		return reject(StateReturning, request, MessagePaymentFailed,
			newError(ErrProviderBusiness, "fetch status", fmt.Errorf("unexpected checkout status %q", details.Status)))
	}

	c.checkAmount(ctx, request.Resource, details)

	transactionId, err := c.provider.Capture(ctx, request.Token, request.PayerId, request.Resource.Price, request.Resource.Name)
	if err != nil {
		return reject(StateReturning, request, MessagePaymentFailed, err)
	}

	return &Decision{
		Action:        ActionDeliver,
		State:         StateReturning,
		Status:        http.StatusOK,
		Request:       request,
		TransactionId: transactionId,
	}
}

// checkAmount warns when the price changed between initiating and completing a checkout.
// The capture always uses the current catalog price.
func (c *Checkout) checkAmount(ctx context.Context, resource entity.Resource, details *entity.CheckoutDetails) {
	if details.Amount == "" || c.logger == nil {
		return
	}
	amount, err := decimal.NewFromString(details.Amount)
	if err != nil || !amount.Equal(resource.Price) {
		c.logger.Warn(fmt.Sprintf("[%s] %s: checkout amount %s differs from catalog price %s",
			GetRequestID(ctx), resource.Name, details.Amount, resource.Amount()))
	}
}

func (c *Checkout) ready() error {
	if c.configErr != nil {
		return c.configErr
	}
	if c.catalog == nil || c.dispatcher == nil {
		return newError(ErrNotConfigured, "configure", fmt.Errorf("catalog or dispatcher not set"))
	}
	if c.provider == nil && !c.conf.DisablePayment {
		return newError(ErrNotConfigured, "configure", fmt.Errorf("provider not set"))
	}
	return nil
}

func (c *Checkout) appUrl(r *http.Request) string {
	base := strings.TrimSuffix(c.conf.Checkout.PublicUrl, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + r.URL.EscapedPath()
}

func (c *Checkout) report(ctx context.Context, decision *Decision) {
	reqID := GetRequestID(ctx)
	request := decision.Request
	text := fmt.Sprintf("[%s] %s %s: %s %d", reqID, decision.State, request.Resource.Name, decision.Action, decision.Status)

	if c.logger != nil {
		switch {
		case decision.Err == nil:
			c.logger.Info(text)
		case errors.Is(decision.Err, ErrProviderTransport), errors.Is(decision.Err, ErrDispatch), errors.Is(decision.Err, ErrNotConfigured):
			c.logger.Error(text, decision.Err)
		default:
			c.logger.Warn(fmt.Sprintf("%s; %v", text, decision.Err))
		}
	}

	if c.database == nil {
		return
	}
	event := &entity.CheckoutEvent{
		RequestId:        reqID,
		Resource:         request.Resource.Name,
		State:            decision.State.String(),
		Outcome:          decision.Action.String(),
		Status:           decision.Status,
		TokenFingerprint: fingerprint(request.Token),
		TransactionId:    decision.TransactionId,
		Time:             time.Now(),
	}
	if decision.Err != nil {
		event.Error = decision.Err.Error()
	}
	if err := c.database.SaveCheckoutEvent(ctx, event); err != nil && c.logger != nil {
		c.logger.Error(fmt.Sprintf("[%s] save checkout event", reqID), err)
	}
}

func reject(state State, request entity.CheckoutRequest, message string, err error) *Decision {
	return &Decision{
		Action:  ActionReject,
		State:   state,
		Status:  http.StatusUnauthorized,
		Message: message,
		Request: request,
		Err:     err,
	}
}

func sendResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<HTML> <HEAD><TITLE>Error</TITLE></HEAD><BODY><strong align="center">%s</strong></BODY></HTML>`,
		html.EscapeString(message))
}
