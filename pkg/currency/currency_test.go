package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatEnglishLocale(t *testing.T) {
	f := New("en", "USD")
	assert.Equal(t, "USD 1,234.50", f.Format(decimal.NewFromFloat(1234.5)))
	assert.Equal(t, "USD 0.00", f.Format(decimal.Zero))
}

func TestFormatSpanishLocale(t *testing.T) {
	f := New("es", "USD")
	assert.Equal(t, "USD 1.234,50", f.Format(decimal.NewFromFloat(1234.5)))
}

func TestFormatRounding(t *testing.T) {
	f := New("en", "USD")
	assert.Equal(t, "USD 130.42", f.Format(decimal.NewFromFloat(130.415)))
}

func TestFormatUnknownLocaleFallsBack(t *testing.T) {
	f := New("not-a-locale", "USD")
	assert.Equal(t, "USD 10.00", f.Format(decimal.NewFromInt(10)))
}
