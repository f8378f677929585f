package polymarket

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyhedge/internal/crypto"
	"github.com/alanyoungcy/polyhedge/internal/domain"
)

// Exchanges are the two settlement contracts an order can be signed for.
type Exchanges struct {
	Standard common.Address
	NegRisk  common.Address
}

// PolygonExchanges are the mainnet (chain 137) contracts.
var PolygonExchanges = Exchanges{
	Standard: common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"),
	NegRisk:  common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a"),
}

const defaultTickSize = 0.01

// OrderBuilder turns a domain.MarketOrder into a signed FAK order with
// venue-aligned integer amounts.
type OrderBuilder struct {
	signer     *crypto.Signer
	funder     common.Address
	sigType    uint8
	exchanges  Exchanges
	feeRateBps int64
	salt       func() int64
}

// NewOrderBuilder signs with signer on behalf of funder (the signer's own
// address when funder is empty).
func NewOrderBuilder(signer *crypto.Signer, funder string, sigType uint8, ex Exchanges, feeRateBps int64) *OrderBuilder {
	b := &OrderBuilder{
		signer:     signer,
		funder:     signer.Address(),
		sigType:    sigType,
		exchanges:  ex,
		feeRateBps: feeRateBps,
		salt:       func() int64 { return time.Now().UnixNano()%1_000_000_000_000 + int64(uuid.New().ID()) },
	}
	if funder != "" {
		b.funder = common.HexToAddress(funder)
	}
	return b
}

// Funder is the address holding collateral and positions.
func (b *OrderBuilder) Funder() common.Address {
	return b.funder
}

// Build prices m on the tick grid in the conservative direction (buys
// floor, sells ceil) and computes maker/taker amounts.
func (b *OrderBuilder) Build(m domain.MarketOrder, tick float64, negRisk bool) (domain.Order, error) {
	if m.TokenID == "" {
		return domain.Order{}, fmt.Errorf("%w: missing token id", domain.ErrInvalidOrder)
	}
	if m.Amount <= 0 || m.Price <= 0 || m.Price >= 1 {
		return domain.Order{}, fmt.Errorf("%w: amount %.4f price %.4f", domain.ErrInvalidOrder, m.Amount, m.Price)
	}
	tokenID, ok := new(big.Int).SetString(m.TokenID, 10)
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: token id %q is not numeric", domain.ErrInvalidOrder, m.TokenID)
	}

	price, makerAmt, takerAmt, err := marketAmounts(m, tick)
	if err != nil {
		return domain.Order{}, err
	}

	side := crypto.SideBuy
	if m.Side == domain.OrderSideSell {
		side = crypto.SideSell
	}
	exchange := b.exchanges.Standard
	if negRisk {
		exchange = b.exchanges.NegRisk
	}
	salt := b.salt()
	payload := crypto.OrderPayload{
		Salt:          big.NewInt(salt),
		Maker:         b.funder,
		Signer:        b.signer.Address(),
		TokenID:       tokenID,
		MakerAmount:   units(makerAmt),
		TakerAmount:   units(takerAmt),
		Expiration:    big.NewInt(0),
		Nonce:         big.NewInt(0),
		FeeRateBps:    big.NewInt(b.feeRateBps),
		Side:          side,
		SignatureType: b.sigType,
	}
	sig, err := b.signer.SignOrder(payload, exchange)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrSigningFailed, err)
	}

	shares := takerAmt
	if m.Side == domain.OrderSideSell {
		shares = makerAmt
	}
	return domain.Order{
		ID:            uuid.NewString(),
		MarketID:      m.MarketID,
		TokenID:       m.TokenID,
		Maker:         b.funder.Hex(),
		Signer:        b.signer.Address().Hex(),
		Side:          m.Side,
		Type:          domain.OrderTypeFAK,
		PriceTicks:    price.Shift(6).IntPart(),
		SizeUnits:     shares.Shift(6).IntPart(),
		MakerAmount:   payload.MakerAmount,
		TakerAmount:   payload.TakerAmount,
		Salt:          strconv.FormatInt(salt, 10),
		FeeRateBps:    int(b.feeRateBps),
		SignatureType: int(b.sigType),
		NegRisk:       negRisk,
		Signature:     sig,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// marketAmounts returns the grid price and the maker/taker amounts. Buys
// give USD and take shares; sells give shares and take USD.
func marketAmounts(m domain.MarketOrder, tick float64) (price, maker, taker decimal.Decimal, err error) {
	if tick <= 0 {
		tick = defaultTickSize
	}
	t := decimal.NewFromFloat(tick)
	priceDP := int32(-t.Exponent())
	sizeDP := int32(2)
	amountDP := priceDP + 2

	raw := decimal.NewFromFloat(m.Price)
	steps := raw.Div(t)
	if m.Side == domain.OrderSideSell {
		steps = steps.Ceil()
	} else {
		steps = steps.Floor()
	}
	price = steps.Mul(t)
	price = decimal.Max(price, t)
	price = decimal.Min(price, decimal.NewFromInt(1).Sub(t))

	amount := decimal.NewFromFloat(m.Amount).RoundFloor(sizeDP)
	if !amount.IsPositive() {
		return price, maker, taker, fmt.Errorf("%w: amount rounds to zero", domain.ErrInvalidOrder)
	}
	maker = amount
	if m.Side == domain.OrderSideSell {
		taker = amount.Mul(price).RoundFloor(amountDP)
	} else {
		taker = amount.Div(price).RoundFloor(amountDP)
	}
	return price, maker, taker, nil
}

func units(d decimal.Decimal) *big.Int {
	return d.Shift(6).Truncate(0).BigInt()
}
