package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/shopspring/decimal"
)

var ErrRateNotFound = errors.New("exchange rate not found")

// Provider отдает курс: 1 единица from = rate единиц to.
type Provider interface {
	GetExchangeRate(ctx context.Context, from, to money.Currency) (decimal.Decimal, error)
}

// source хранит только «прямые» курсы, обратные и сатоши вычисляются здесь
type source interface {
	lookup(ctx context.Context, from, to money.Currency) (decimal.Decimal, error)
}

const divisionPrecision = 16

var satsPerBTC = decimal.NewFromInt(100_000_000)

// resolve ищет курс from→to: прямой, иначе обратный. SAT сводится к BTC.
func resolve(ctx context.Context, src source, from, to money.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	switch {
	case from == money.SAT:
		rate, err := resolve(ctx, src, money.BTC, to)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return rate.DivRound(satsPerBTC, divisionPrecision), nil
	case to == money.SAT:
		rate, err := resolve(ctx, src, from, money.BTC)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return rate.Mul(satsPerBTC), nil
	}

	rate, err := src.lookup(ctx, from, to)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, ErrRateNotFound) {
		return decimal.Decimal{}, err
	}

	inverse, err := src.lookup(ctx, to, from)
	if err != nil {
		if errors.Is(err, ErrRateNotFound) {
			return decimal.Decimal{}, fmt.Errorf("%w: %s/%s", ErrRateNotFound, from, to)
		}
		return decimal.Decimal{}, err
	}
	return decimal.NewFromInt(1).DivRound(inverse, divisionPrecision), nil
}

func pairKey(from, to money.Currency) string {
	return string(from) + "_" + string(to)
}
