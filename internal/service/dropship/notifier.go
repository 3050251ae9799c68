package dropship

import (
	"context"
	"errors"

	"github.com/dumeirei/marketplace-commission/pkg/sms"
)

// ShipmentNotice 发货通知
type ShipmentNotice struct {
	OrderID        int64
	OrderNo        string
	Phone          string
	Carrier        string
	TrackingNumber string
	TrackingURL    string
}

// ShipmentNotifier 发货通知分发，失败只记录日志
type ShipmentNotifier interface {
	NotifyShipment(ctx context.Context, notice ShipmentNotice) error
}

var errNoPhone = errors.New("customer phone is empty")

// SMSShipmentNotifier 通过短信通知顾客发货
type SMSShipmentNotifier struct {
	sender sms.Sender
}

// NewSMSShipmentNotifier 创建短信发货通知
func NewSMSShipmentNotifier(sender sms.Sender) *SMSShipmentNotifier {
	return &SMSShipmentNotifier{sender: sender}
}

// NotifyShipment 发送发货短信
func (n *SMSShipmentNotifier) NotifyShipment(ctx context.Context, notice ShipmentNotice) error {
	if notice.Phone == "" {
		return errNoPhone
	}
	return n.sender.SendShipmentNotify(ctx, notice.Phone, sms.ShipmentNotice{
		OrderNo:        notice.OrderNo,
		Carrier:        notice.Carrier,
		TrackingNumber: notice.TrackingNumber,
		TrackingURL:    notice.TrackingURL,
	})
}
