package internal

import (
	"context"
	"crypto/tls"
	"fmt"
	"github.com/shopspring/decimal"
	"io"
	"net/http"
	"paygate/config"
	"paygate/entity"
	"paygate/internal/nvp"
	"paygate/services"
	"strings"
	"time"
)

const maxResponseSize = 64 << 10

// ExpressCheckout calls the Express Checkout NVP API. Each call is a single POST;
// failures are reported as *ProviderError and never retried.
type ExpressCheckout struct {
	conf       *config.Config
	endpoint   string
	logger     services.LogHandler
	httpClient *http.Client
}

// NewExpressCheckout creates the API client. Server certificates are always verified;
// the configured timeout bounds every call.
func NewExpressCheckout(conf *config.Config) *ExpressCheckout {
	timeout := conf.Provider.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ExpressCheckout{
		conf:     conf,
		endpoint: conf.Provider.Endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (e *ExpressCheckout) SetLogger(logger services.LogHandler) {
	e.logger = logger
}

func (e *ExpressCheckout) SetHTTPClient(client *http.Client) {
	e.httpClient = client
}

// Initiate calls SetExpressCheckout for a single digital item and returns the checkout token.
func (e *ExpressCheckout) Initiate(ctx context.Context, amount decimal.Decimal, name, returnUrl, cancelUrl string) (string, error) {
	amt := entity.FormatAmount(amount, e.conf.Catalog.Currency)
	request := e.newRequest(entity.MethodSetExpressCheckout)
	request.Set(entity.FieldReturnUrl, returnUrl)
	request.Set(entity.FieldCancelUrl, cancelUrl)
	request.Set(entity.FieldAmount, amt)
	request.Set(entity.FieldCurrency, e.conf.Catalog.Currency)
	request.Set(entity.FieldItemAmount, amt)
	request.Set(entity.FieldPaymentAction, "Sale")
	request.Set(entity.FieldItemName, name)
	request.Set(entity.FieldItemAmt, amt)
	request.Set(entity.FieldItemCategory, "Digital")
	request.Set(entity.FieldConfirmShip, "0")
	request.Set(entity.FieldNoShipping, "1")
	request.Set(entity.FieldItemQty, "1")

	response, err := e.call(ctx, entity.MethodSetExpressCheckout, request)
	if err != nil {
		return "", err
	}
	token := response.Value(entity.FieldToken)
	if token == "" {
		return "", e.businessError(entity.MethodSetExpressCheckout, response, "no token in response")
	}
	e.debug(fmt.Sprintf("%s: %s %s for %s; token %s", entity.MethodSetExpressCheckout, amt, e.conf.Catalog.Currency, name, secret(token)))
	return token, nil
}

// FetchStatus calls GetExpressCheckoutDetails.
func (e *ExpressCheckout) FetchStatus(ctx context.Context, token string) (*entity.CheckoutDetails, error) {
	request := e.newRequest(entity.MethodGetExpressCheckoutDetails)
	request.Set(entity.FieldToken, token)

	response, err := e.call(ctx, entity.MethodGetExpressCheckoutDetails, request)
	if err != nil {
		return nil, err
	}
	details := &entity.CheckoutDetails{
		Token:    response.Value(entity.FieldToken),
		Status:   response.Value(entity.FieldCheckoutStatus),
		PayerId:  response.Value(entity.FieldPayerId),
		Amount:   response.Value(entity.FieldAmount),
		Currency: response.Value(entity.FieldCurrency),
	}
	e.debug(fmt.Sprintf("%s: token %s; status %s", entity.MethodGetExpressCheckoutDetails, secret(token), details.Status))
	return details, nil
}

// Capture calls DoExpressCheckoutPayment and returns the transaction id.
func (e *ExpressCheckout) Capture(ctx context.Context, token, payerId string, amount decimal.Decimal, name string) (string, error) {
	amt := entity.FormatAmount(amount, e.conf.Catalog.Currency)
	request := e.newRequest(entity.MethodDoExpressCheckoutPayment)
	request.Set(entity.FieldToken, token)
	request.Set(entity.FieldPayerId, payerId)
	request.Set(entity.FieldAmount, amt)
	request.Set(entity.FieldCurrency, e.conf.Catalog.Currency)
	request.Set(entity.FieldItemAmount, amt)
	request.Set(entity.FieldPaymentAction, "Sale")
	request.Set(entity.FieldItemName, name)
	request.Set(entity.FieldItemAmt, amt)
	request.Set(entity.FieldItemCategory, "Digital")
	request.Set(entity.FieldItemQty, "1")

	response, err := e.call(ctx, entity.MethodDoExpressCheckoutPayment, request)
	if err != nil {
		return "", err
	}
	transactionId := response.Value(entity.FieldTransactionId)
	if transactionId == "" && e.logger != nil {
		e.logger.Warn(fmt.Sprintf("%s: token %s captured without transaction id", entity.MethodDoExpressCheckoutPayment, secret(token)))
	}
	e.debug(fmt.Sprintf("%s: token %s; transaction %s; payment status %s", entity.MethodDoExpressCheckoutPayment,
		secret(token), transactionId, response.Value(entity.FieldPaymentStatus)))
	return transactionId, nil
}

func (e *ExpressCheckout) newRequest(method string) *nvp.Params {
	request := nvp.New()
	request.Set(entity.FieldUser, e.conf.Provider.User)
	request.Set(entity.FieldPassword, e.conf.Provider.Password)
	request.Set(entity.FieldSignature, e.conf.Provider.Signature)
	request.Set(entity.FieldVersion, e.conf.Provider.Version)
	request.Set(entity.FieldMethod, method)
	return request
}

func (e *ExpressCheckout) call(ctx context.Context, method string, request *nvp.Params) (*nvp.Params, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, strings.NewReader(request.Encode()))
	if err != nil {
		return nil, e.transportError(method, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := e.httpClient.Do(req)
	if err != nil {
		return nil, e.transportError(method, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil && e.logger != nil {
			e.logger.Error("close response body", err)
		}
	}(response.Body)

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, e.transportError(method, fmt.Errorf("read response body: %w", err))
	}
	if response.StatusCode != http.StatusOK {
		return nil, e.transportError(method, fmt.Errorf("http status %d", response.StatusCode))
	}

	params, err := nvp.ParseResponse(string(body))
	if err != nil {
		return nil, e.transportError(method, fmt.Errorf("parse response: %w", err))
	}
	if !params.Is(entity.FieldAck, entity.AckSuccess) {
		return nil, e.businessError(method, params, "")
	}
	return params, nil
}

func (e *ExpressCheckout) transportError(method string, err error) *ProviderError {
	return &ProviderError{
		Kind:   ErrProviderTransport,
		Method: method,
		Err:    err,
	}
}

func (e *ExpressCheckout) businessError(method string, response *nvp.Params, reason string) *ProviderError {
	providerErr := &ProviderError{
		Kind:          ErrProviderBusiness,
		Method:        method,
		Ack:           response.Value(entity.FieldAck),
		Code:          response.Value(entity.FieldErrorCode),
		ShortMessage:  response.Value(entity.FieldShortMessage),
		LongMessage:   response.Value(entity.FieldLongMessage),
		CorrelationId: response.Value(entity.FieldCorrelationId),
	}
	if reason != "" {
		providerErr.LongMessage = reason
	}
	return providerErr
}

func (e *ExpressCheckout) debug(text string) {
	if e.logger != nil {
		e.logger.Debug(text)
	}
}
