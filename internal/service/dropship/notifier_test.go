package dropship

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/marketplace-commission/pkg/sms"
)

func TestSMSShipmentNotifier(t *testing.T) {
	ctx := context.Background()
	sender := sms.NewMockSender()
	n := NewSMSShipmentNotifier(sender)

	err := n.NotifyShipment(ctx, ShipmentNotice{
		OrderNo:        "MO20260310001",
		Phone:          "13800138000",
		Carrier:        "DHL",
		TrackingNumber: "TN1",
	})
	require.NoError(t, err)

	msg := sender.Last()
	require.NotNil(t, msg)
	assert.Equal(t, "13800138000", msg.Phone)
	assert.Equal(t, sms.TemplateShipmentNotify, msg.TemplateCode)
	assert.Equal(t, "TN1", msg.Params["tracking_number"])

	t.Run("缺少手机号", func(t *testing.T) {
		sender.Reset()
		assert.Error(t, n.NotifyShipment(ctx, ShipmentNotice{OrderNo: "X"}))
		assert.Empty(t, sender.Messages())
	})
}
