package vnpay

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Protocol constants for the pay command.
const (
	Version       = "2.1.0"
	CommandPay    = "pay"
	CurrencyVND   = "VND"
	OrderTypeCode = "event_ticket"
	LocaleVN      = "vn"

	// ResponseCodeSuccess is the sentinel vnp_ResponseCode for a settled
	// transaction.
	ResponseCodeSuccess = "00"

	createDateLayout = "20060102150405"
)

// Acknowledgment codes the IPN endpoint must answer with.
const (
	RspConfirmSuccess      = "00"
	RspOrderAlreadyUpdated = "02"
	RspInvalidAmount       = "04"
	RspOrderNotFound       = "01"
	RspInvalidSignature    = "97"
	RspInvalidRequest      = "99"
)

var ErrGatewayDeclined = errors.New("vnpay: gateway declined transaction")

type Config struct {
	TmnCode    string
	HashSecret string
	PaymentURL string
	ReturnURL  string
}

// Adapter is the single gateway protocol implementation: it builds outbound
// redirect URLs and validates inbound callbacks with the same codec.
type Adapter struct {
	cfg Config
	now func() time.Time
}

func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg, now: time.Now}
}

// PaymentRequest describes one redirect to the gateway. Amount is in major
// units (VND with two decimal places); the wire format carries amount x100.
type PaymentRequest struct {
	OrderID   string
	Amount    decimal.Decimal
	OrderInfo string
	Locale    string
	IPAddr    string
}

// BuildPaymentURL assembles the signed redirect URL for a pending session.
func (a *Adapter) BuildPaymentURL(req PaymentRequest) (string, error) {
	if req.OrderID == "" {
		return "", errors.New("vnpay: order id is required")
	}
	if req.Amount.IsNegative() {
		return "", errors.New("vnpay: amount must not be negative")
	}

	locale := req.Locale
	if locale == "" {
		locale = LocaleVN
	}
	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "Thanh toan ve su kien"
	}

	params := map[string]string{
		"vnp_Version":    Version,
		"vnp_Command":    CommandPay,
		"vnp_TmnCode":    a.cfg.TmnCode,
		"vnp_Amount":     req.Amount.Shift(2).Truncate(0).String(),
		"vnp_CurrCode":   CurrencyVND,
		"vnp_TxnRef":     req.OrderID,
		"vnp_OrderInfo":  orderInfo,
		"vnp_OrderType":  OrderTypeCode,
		"vnp_Locale":     locale,
		"vnp_IpAddr":     req.IPAddr,
		"vnp_CreateDate": a.now().Format(createDateLayout),
		"vnp_ReturnUrl":  a.cfg.ReturnURL,
	}

	secureHash := Sign(params, a.cfg.HashSecret)
	return fmt.Sprintf("%s?%s&%s=%s", a.cfg.PaymentURL, encodeQuery(params), FieldSecureHash, secureHash), nil
}

// encodeQuery renders the query string with the same sorted order and
// percent-encoding as the hash data, so a receiver that re-canonicalizes the
// URL's parameters reproduces the signature.
func encodeQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

// Callback is a verified inbound gateway notification (IPN or browser
// return). Amount is converted back to major units.
type Callback struct {
	OrderID       string
	Amount        decimal.Decimal
	OrderInfo     string
	TransactionNo string
	ResponseCode  string
	BankCode      string
	CardType      string
	PayDate       string
}

// ParseCallback verifies the signature over the flat parameter map and
// decodes the fields the settlement path needs. A signature failure returns
// ErrSignatureMismatch and no callback data.
func (a *Adapter) ParseCallback(values url.Values) (*Callback, error) {
	if len(values) == 0 {
		return nil, errors.New("vnpay: empty callback payload")
	}

	params := make(map[string]string, len(values))
	for k := range values {
		params[k] = values.Get(k)
	}

	if err := Verify(params, a.cfg.HashSecret); err != nil {
		return nil, err
	}

	rawAmount := params["vnp_Amount"]
	amount := decimal.Zero
	if rawAmount != "" {
		parsed, err := decimal.NewFromString(rawAmount)
		if err != nil {
			return nil, fmt.Errorf("vnpay: bad vnp_Amount %q: %w", rawAmount, err)
		}
		amount = parsed.Shift(-2)
	}

	return &Callback{
		OrderID:       params["vnp_TxnRef"],
		Amount:        amount,
		OrderInfo:     params["vnp_OrderInfo"],
		TransactionNo: params["vnp_TransactionNo"],
		ResponseCode:  params["vnp_ResponseCode"],
		BankCode:      params["vnp_BankCode"],
		CardType:      params["vnp_CardType"],
		PayDate:       params["vnp_PayDate"],
	}, nil
}

// Succeeded reports whether the gateway settled the transaction.
func (c *Callback) Succeeded() bool {
	return c.ResponseCode == ResponseCodeSuccess
}

// Ack is the machine-readable response the IPN endpoint returns to the
// gateway regardless of internal processing detail.
type Ack struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}
