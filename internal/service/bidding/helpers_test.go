package bidding

import (
	"github.com/shopspring/decimal"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/values"
)

func decimalFromInt(i int) decimal.Decimal {
	return decimal.NewFromInt(int64(i))
}

func mustMoney(amount string) values.Money {
	return values.MustNewMoneyFromString(amount, values.GBP)
}
