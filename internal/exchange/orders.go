package exchange

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	json "github.com/goccy/go-json"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-updown/pkg/types"
)

const polygonChainID = 137

// orderSigner builds, signs, and submits single outcome-token buys against
// the CLOB order endpoint with L2 (HMAC) authentication.
type orderSigner struct {
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string // EOA address (signer)
	proxyAddress  string // proxy address (maker/funder), optional
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	clobURL       string
	httpClient    *http.Client
	logger        *zap.Logger
}

func newOrderSigner(cfg *Config, httpClient *http.Client) (*orderSigner, error) {
	if cfg.APIKey == "" || cfg.Secret == "" || cfg.Passphrase == "" {
		return nil, fmt.Errorf("live mode requires CLOB API credentials")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKey, _ := privateKey.Public().(*ecdsa.PublicKey)
	address := crypto.PubkeyToAddress(*publicKey).Hex()

	orderBuilder := builder.NewExchangeOrderBuilderImpl(big.NewInt(polygonChainID), nil)

	return &orderSigner{
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		privateKey:    privateKey,
		address:       address,
		proxyAddress:  cfg.ProxyAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		orderBuilder:  orderBuilder,
		clobURL:       cfg.CLOBURL,
		httpClient:    httpClient,
		logger:        cfg.Logger,
	}, nil
}

// signedOrderJSON is the wire format the CLOB expects for a signed order.
type signedOrderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Side          string `json:"side"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// orderResponse is the CLOB order endpoint response.
type orderResponse struct {
	OrderID  string  `json:"orderID"`
	Status   string  `json:"status"`
	Success  bool    `json:"success"`
	ErrorMsg string  `json:"errorMsg"`
	Price    float64 `json:"price,string"`
	Size     float64 `json:"size,string"`
}

// placeOrder submits a FOK buy of amountUSD worth of the token at the
// market price. FOK keeps the session machine simple: the order either
// fills immediately or fails with FOK_ORDER_NOT_FILLED_ERROR.
func (s *orderSigner) placeOrder(ctx context.Context, tokenID string, amountUSD float64) (*orderResponse, error) {
	makerAddress := s.address
	if s.proxyAddress != "" {
		makerAddress = s.proxyAddress
	}

	// For a market FOK buy the maker amount is the USDC spent; the taker
	// amount is left at zero and the matching engine fills at market.
	orderData := &model.OrderData{
		Maker:         makerAddress,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenId:       tokenID,
		MakerAmount:   usdToRawAmount(amountUSD),
		TakerAmount:   "0",
		Side:          model.BUY,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        s.address,
		Expiration:    "0",
		SignatureType: s.signatureType,
	}

	signedOrder, err := s.orderBuilder.BuildSignedOrder(s.privateKey, orderData, model.CTFExchange)
	if err != nil {
		return nil, fmt.Errorf("build order: %w", err)
	}

	return s.submit(ctx, signedOrder, tokenID)
}

func (s *orderSigner) submit(ctx context.Context, order *model.SignedOrder, tokenID string) (*orderResponse, error) {
	sideStr := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	jsonOrder := signedOrderJSON{
		Salt:          order.Salt.Int64(),
		Maker:         order.Maker.Hex(),
		Signer:        order.Signer.Hex(),
		Taker:         order.Taker.Hex(),
		TokenID:       order.TokenId.String(),
		MakerAmount:   order.MakerAmount.String(),
		TakerAmount:   order.TakerAmount.String(),
		Side:          sideStr,
		Expiration:    order.Expiration.String(),
		Nonce:         order.Nonce.String(),
		FeeRateBps:    order.FeeRateBps.String(),
		SignatureType: int(order.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(order.Signature),
	}

	// "owner" is the API key, not the maker address.
	orderRequest := map[string]interface{}{
		"order":     jsonOrder,
		"owner":     s.apiKey,
		"orderType": "FOK",
	}

	reqBody, err := json.Marshal(orderRequest)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	method := http.MethodPost
	requestPath := "/order"

	signature, err := s.sign(timestamp + method + requestPath + string(reqBody))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.clobURL+requestPath, strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", s.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", s.passphrase)
	req.Header.Set("POLY_ADDRESS", s.address)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, orderErrorFromBody(resp.StatusCode, body, tokenID)
	}

	var orderResp orderResponse
	if err = json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if orderResp.ErrorMsg != "" {
		return nil, &types.OrderError{
			Code:    errorCode(orderResp.ErrorMsg),
			Message: orderResp.ErrorMsg,
			OrderID: orderResp.OrderID,
			TokenID: tokenID,
		}
	}

	return &orderResp, nil
}

// sign computes the URL-safe base64 HMAC-SHA256 the CLOB L2 auth expects.
func (s *orderSigner) sign(payload string) (string, error) {
	secretBytes, err := base64.URLEncoding.DecodeString(s.secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(payload))
	return base64.URLEncoding.EncodeToString(h.Sum(nil)), nil
}

// clobErrorBody is the error envelope the CLOB returns on rejections.
type clobErrorBody struct {
	Error    string `json:"error"`
	ErrorMsg string `json:"errorMsg"`
}

// orderErrorFromBody maps a non-2xx order response into an OrderError so
// callers can decide retryability from the code.
func orderErrorFromBody(status int, body []byte, tokenID string) *types.OrderError {
	var parsed clobErrorBody
	_ = json.Unmarshal(body, &parsed)

	message := parsed.ErrorMsg
	if message == "" {
		message = parsed.Error
	}
	if message == "" {
		message = string(body)
	}

	return &types.OrderError{
		Code:    errorCode(message),
		Message: fmt.Sprintf("status %d: %s", status, message),
		TokenID: tokenID,
	}
}

// knownErrorCodes are the CLOB rejection codes we match inside error text.
var knownErrorCodes = []string{
	types.ErrInvalidMinTickSize,
	types.ErrNotEnoughBalance,
	types.ErrFOKNotFilled,
	types.ErrMarketNotReady,
	types.ErrUnmatched,
}

func errorCode(message string) string {
	for _, code := range knownErrorCodes {
		if strings.Contains(message, code) {
			return code
		}
	}
	return types.ErrUnknownStatus
}

func usdToRawAmount(usd float64) string {
	return fmt.Sprintf("%d", int64(usd*1000000))
}
