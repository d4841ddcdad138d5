package mailtmpl

import (
	"testing"

	"github.com/storefront-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStars(t *testing.T) {
	assert.Equal(t, "★★★★☆", Stars(4))
	assert.Equal(t, "★★★★★", Stars(5))
	assert.Equal(t, "☆☆☆☆☆", Stars(0))
	assert.Equal(t, "★★★★★", Stars(9))
}

func TestMoney(t *testing.T) {
	r := New("https://shop.example.com", "$")
	assert.Equal(t, "$1,234.50", r.Money(domain.MustMoney("1234.5")))
	assert.Equal(t, "$0.99", r.Money(domain.MustMoney("0.994")))
	assert.Equal(t, "-$12.00", r.Money(domain.MustMoney("-12")))
	assert.Equal(t, "$123,456,789,012,345,678,901,234.56", r.Money(domain.MustMoney("123456789012345678901234.56")))
}

func TestBackInStock_UsesOfferPriceAndLink(t *testing.T) {
	r := New("https://shop.example.com/", "$")
	msg, err := r.BackInStock(&domain.Product{
		ProductID: "p1", Name: "Desk Lamp",
		Price: domain.MustMoney("49.99"), OfferPrice: domain.MustMoney("39.99"),
	})

	require.NoError(t, err)
	assert.Equal(t, "Back in stock: Desk Lamp", msg.Subject)
	assert.Contains(t, msg.HTML, "$39.99")
	assert.Contains(t, msg.HTML, `href="https://shop.example.com/product/p1"`)
}

func TestBackInStock_EscapesProductName(t *testing.T) {
	msg, err := New("", "$").BackInStock(&domain.Product{ProductID: "p1", Name: "<script>x</script>"})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestOrderConfirmation_ItemizesLines(t *testing.T) {
	msg, err := New("", "$").OrderConfirmation(OrderSummary{
		Lines: []OrderLine{
			{Name: "Desk Lamp", Quantity: 2, LineTotal: domain.MustMoney("79.98")},
			{Name: "Bulb", Quantity: 1, LineTotal: domain.MustMoney("3.50")},
		},
		Address: &domain.Address{FullName: "Ada Lovelace", City: "london", State: "greater london", PinCode: "N1"},
		Total:   domain.MustMoney("83.48"),
	})

	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "Desk Lamp")
	assert.Contains(t, msg.HTML, "$79.98")
	assert.Contains(t, msg.HTML, "$83.48")
	assert.Contains(t, msg.HTML, "London, Greater London N1")
}

func TestReviewAdded(t *testing.T) {
	msg, err := New("https://shop.example.com", "$").ReviewAdded(ReviewNotice{
		ProductID: "p1", ProductName: "Desk Lamp", Author: "Ada", Rating: 4, Comment: "Bright",
	})

	require.NoError(t, err)
	assert.Equal(t, "New 4-star review on Desk Lamp", msg.Subject)
	assert.Contains(t, msg.HTML, "★★★★☆")
	assert.Contains(t, msg.HTML, "<blockquote>Bright</blockquote>")
}
