package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Sender = (*MockSender)(nil)
	_ Sender = (*AliyunSender)(nil)
)

func TestMockSender(t *testing.T) {
	sender := NewMockSender()
	ctx := context.Background()
	assert.Nil(t, sender.Last())

	require.NoError(t, sender.SendShipmentNotify(ctx, "13900139000", ShipmentNotice{
		OrderNo:        "ORD202601010001",
		Carrier:        "YunExpress",
		TrackingNumber: "YT123",
	}))
	require.NoError(t, sender.SendShipmentNotify(ctx, "13900139001", ShipmentNotice{OrderNo: "ORD2"}))

	msg := sender.Last()
	require.NotNil(t, msg)
	assert.Equal(t, "13900139001", msg.Phone)
	assert.Equal(t, TemplateShipmentNotify, msg.TemplateCode)

	first := sender.Messages()[0]
	assert.Equal(t, "YunExpress", first.Params["carrier"])
	assert.Equal(t, "YT123", first.Params["tracking_number"])
	assert.NotContains(t, first.Params, "tracking_url")
	assert.NotZero(t, first.SentAt)

	t.Run("发送失败不记录", func(t *testing.T) {
		sender.Reset()
		sender.Err = errors.New("quota exceeded")
		assert.Error(t, sender.SendShipmentNotify(ctx, "13800138001", ShipmentNotice{}))
		assert.Empty(t, sender.Messages())
	})
}

func TestShipmentNotice_Params(t *testing.T) {
	params := ShipmentNotice{
		OrderNo:        "ORD1",
		Carrier:        "DHL",
		TrackingNumber: "123",
		TrackingURL:    "https://track.example.com/123",
	}.params()

	assert.Equal(t, "https://track.example.com/123", params["tracking_url"])
	assert.Len(t, params, 4)
}

func TestAliyunSender_TemplateMissing(t *testing.T) {
	// 只覆盖模板查找，不访问阿里云
	sender := &AliyunSender{templates: map[string]string{}}
	err := sender.SendShipmentNotify(context.Background(), "13800138000", ShipmentNotice{OrderNo: "ORD1"})
	assert.ErrorContains(t, err, TemplateShipmentNotify)
}

func TestNewAliyunSender_SkipsEmptyTemplates(t *testing.T) {
	sender, err := NewAliyunSender(&AliyunConfig{
		AccessKeyID:     "id",
		AccessKeySecret: "secret",
		Templates:       map[string]string{TemplateShipmentNotify: ""},
	})
	require.NoError(t, err)
	assert.Empty(t, sender.templates)
}
