package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validItem() OrderItem {
	return OrderItem{
		ProductID:   "p1",
		ProductName: "Widget",
		Quantity:    1,
		UnitPrice:   decimal.NewFromInt(10),
	}
}

func TestOrder_Validate_HappyPath(t *testing.T) {
	o := &Order{CustomerID: "cust-1", Items: []OrderItem{validItem()}}
	assert.NoError(t, o.Validate())
}

func TestOrder_Validate_MissingCustomer(t *testing.T) {
	o := &Order{Items: []OrderItem{validItem()}}
	assert.ErrorIs(t, o.Validate(), ErrInvalidCustomerID)
}

func TestOrder_Validate_EmptyItems(t *testing.T) {
	o := &Order{CustomerID: "cust-1"}
	assert.ErrorIs(t, o.Validate(), ErrEmptyOrderItems)
}

func TestOrderItem_Validate_NonPositiveQuantity(t *testing.T) {
	item := validItem()
	item.Quantity = 0
	o := &Order{CustomerID: "cust-1", Items: []OrderItem{item}}
	assert.ErrorIs(t, o.Validate(), ErrInvalidQuantity)
}

func TestOrderItem_Validate_NonPositivePrice(t *testing.T) {
	item := validItem()
	item.UnitPrice = decimal.Zero
	o := &Order{CustomerID: "cust-1", Items: []OrderItem{item}}
	assert.ErrorIs(t, o.Validate(), ErrInvalidPrice)
}

func TestOrder_Cancel_FromPending(t *testing.T) {
	o := &Order{Status: StatusPending}
	assert.NoError(t, o.Cancel())
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentStatusFailed, o.PaymentStatus)
}

func TestOrder_Cancel_FromDelivered_Fails(t *testing.T) {
	o := &Order{Status: StatusDelivered}
	assert.ErrorIs(t, o.Cancel(), ErrOrderCannotCancel)
}

func TestOrder_MarkPaymentSuccess(t *testing.T) {
	o := &Order{Status: StatusPending}
	assert.NoError(t, o.MarkPaymentSuccess("ref-1"))
	assert.Equal(t, PaymentStatusSuccess, o.PaymentStatus)
	assert.Equal(t, "ref-1", *o.PaymentReference)
}

func TestOrder_Deliver_RequiresSuccessfulPayment(t *testing.T) {
	o := &Order{Status: StatusPending, PaymentStatus: PaymentStatusPending}
	assert.ErrorIs(t, o.Deliver(), ErrOrderCannotDeliver)

	o.PaymentStatus = PaymentStatusSuccess
	assert.NoError(t, o.Deliver())
	assert.Equal(t, StatusDelivered, o.Status)
}
