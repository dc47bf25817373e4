package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aimstoreapp/aimstore/internal/models"
)

// ProviderNapas identifies the domestic card gateway.
const ProviderNapas = "napaspay"

// NapasPay request/callback parameter names.
const (
	ParamVersion       = "np_Version"
	ParamCommand       = "np_Command"
	ParamMerchantCode  = "np_TmnCode"
	ParamAmount        = "np_Amount"
	ParamCreateDate    = "np_CreateDate"
	ParamCurrency      = "np_CurrCode"
	ParamIPAddress     = "np_IpAddr"
	ParamLocale        = "np_Locale"
	ParamOrderInfo     = "np_OrderInfo"
	ParamReturnURL     = "np_ReturnUrl"
	ParamTxnRef        = "np_TxnRef"
	ParamResponseCode  = "np_ResponseCode"
	ParamTransactionNo = "np_TransactionNo"
	ParamBankCode      = "np_BankCode"
	ParamPayDate       = "np_PayDate"
	ParamSecureHash    = "np_SecureHash"
)

const (
	protocolVersion = "2.1.0"
	commandPay      = "pay"
	currencyVND     = "VND"
	defaultLocale   = "vn"
)

// Napas implements Provider for the NapasPay domestic card gateway. Requests
// are signed with HMAC-SHA512 over the sorted, URL-encoded parameter set.
type Napas struct {
	merchantCode string
	hashSecret   string
	payURL       string
	returnURL    string
	codes        *CodeTable
	now          func() time.Time
}

type NapasConfig struct {
	MerchantCode string
	HashSecret   string
	PayURL       string
	ReturnURL    string
}

func NewNapas(cfg NapasConfig) (*Napas, error) {
	if cfg.MerchantCode == "" || cfg.HashSecret == "" {
		return nil, fmt.Errorf("merchant code and hash secret are required")
	}
	if cfg.PayURL == "" {
		return nil, fmt.Errorf("pay URL is required")
	}

	codes, err := LoadCodeTable()
	if err != nil {
		return nil, err
	}

	return &Napas{
		merchantCode: cfg.MerchantCode,
		hashSecret:   cfg.HashSecret,
		payURL:       cfg.PayURL,
		returnURL:    cfg.ReturnURL,
		codes:        codes,
		now:          time.Now,
	}, nil
}

func (n *Napas) Name() string {
	return ProviderNapas
}

func (n *Napas) BuildPaymentRequest(ctx context.Context, order *models.Order, method *models.PaymentMethod, client ClientContext) (string, string, error) {
	if ctx == nil {
		return "", "", fmt.Errorf("context is required")
	}
	if order == nil {
		return "", "", fmt.Errorf("order is required")
	}
	if order.Total <= 0 {
		return "", "", fmt.Errorf("order total must be positive, got %d", order.Total)
	}

	now := n.now()
	txnRef := fmt.Sprintf("%s_%d", order.ID, now.Unix())

	locale := client.Locale
	if locale == "" {
		locale = defaultLocale
	}

	params := map[string]string{
		ParamVersion:      protocolVersion,
		ParamCommand:      commandPay,
		ParamMerchantCode: n.merchantCode,
		// Amounts go over the wire multiplied by 100 per gateway convention.
		ParamAmount:     fmt.Sprintf("%d", order.Total*100),
		ParamCreateDate: now.Format("20060102150405"),
		ParamCurrency:   currencyVND,
		ParamIPAddress:  client.IPAddress,
		ParamLocale:     locale,
		ParamOrderInfo:  fmt.Sprintf("Payment for order %s", order.ID),
		ParamReturnURL:  n.returnURL,
		ParamTxnRef:     txnRef,
	}

	signed := signedQuery(params)
	signature := n.sign(signed)

	redirectURL := fmt.Sprintf("%s?%s&%s=%s", n.payURL, signed, ParamSecureHash, signature)
	return redirectURL, txnRef, nil
}

// VerifySignature recomputes the keyed hash over the sorted, URL-encoded
// parameter set excluding the signature field itself and compares it against
// the supplied signature in constant time.
func (n *Napas) VerifySignature(params map[string]string) bool {
	supplied := params[ParamSecureHash]
	if supplied == "" {
		return false
	}

	filtered := make(map[string]string, len(params))
	for key, value := range params {
		if key == ParamSecureHash {
			continue
		}
		filtered[key] = value
	}

	expected := n.sign(signedQuery(filtered))

	suppliedBytes, err := hex.DecodeString(strings.ToLower(supplied))
	if err != nil {
		return false
	}
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	return hmac.Equal(suppliedBytes, expectedBytes)
}

func (n *Napas) MapResponseCode(code string) Outcome {
	return n.codes.Map(code)
}

// DescribeResponse returns a human-readable summary of a callback, recorded
// on the transaction for support tooling.
func (n *Napas) DescribeResponse(code, bankCode, payDate string) string {
	parts := []string{fmt.Sprintf("code=%s (%s)", code, n.codes.Describe(code))}
	if bankCode != "" {
		parts = append(parts, fmt.Sprintf("bank=%s", n.codes.BankName(bankCode)))
	}
	if payDate != "" {
		parts = append(parts, fmt.Sprintf("paid=%s", payDate))
	}
	return strings.Join(parts, ", ")
}

func (n *Napas) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(n.hashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedQuery builds the canonical signing input: parameters sorted by key,
// URL-encoded, empty values skipped.
func signedQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if value == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[key]))
	}
	return b.String()
}
