// Package sms 发货通知短信
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dysmsapi "github.com/alibabacloud-go/dysmsapi-20170525/v3/client"
	"github.com/alibabacloud-go/tea/tea"
)

// TemplateShipmentNotify 发货通知模板名
const TemplateShipmentNotify = "shipment_notify"

const (
	defaultRegion   = "cn-hangzhou"
	defaultEndpoint = "dysmsapi.aliyuncs.com"
)

// Sender 短信发送器
type Sender interface {
	SendShipmentNotify(ctx context.Context, phone string, notice ShipmentNotice) error
}

// ShipmentNotice 发货通知内容
type ShipmentNotice struct {
	OrderNo        string
	Carrier        string
	TrackingNumber string
	TrackingURL    string
}

func (n ShipmentNotice) params() map[string]string {
	params := map[string]string{
		"order_no":        n.OrderNo,
		"carrier":         n.Carrier,
		"tracking_number": n.TrackingNumber,
	}
	if n.TrackingURL != "" {
		params["tracking_url"] = n.TrackingURL
	}
	return params
}

// AliyunConfig 阿里云短信配置
type AliyunConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	SignName        string
	RegionID        string
	Templates       map[string]string // 模板名 -> 阿里云模板编码
}

// AliyunSender 阿里云短信发送器
type AliyunSender struct {
	client    *dysmsapi.Client
	signName  string
	templates map[string]string
}

// NewAliyunSender 创建阿里云短信发送器
func NewAliyunSender(cfg *AliyunConfig) (*AliyunSender, error) {
	region := cfg.RegionID
	if region == "" {
		region = defaultRegion
	}
	client, err := dysmsapi.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
		RegionId:        tea.String(region),
		Endpoint:        tea.String(defaultEndpoint),
	})
	if err != nil {
		return nil, fmt.Errorf("create sms client: %w", err)
	}

	templates := make(map[string]string, len(cfg.Templates))
	for name, code := range cfg.Templates {
		if code != "" {
			templates[name] = code
		}
	}
	return &AliyunSender{client: client, signName: cfg.SignName, templates: templates}, nil
}

// SendShipmentNotify 发送发货通知
func (s *AliyunSender) SendShipmentNotify(ctx context.Context, phone string, notice ShipmentNotice) error {
	code, ok := s.templates[TemplateShipmentNotify]
	if !ok {
		return fmt.Errorf("sms template %q not configured", TemplateShipmentNotify)
	}
	return s.send(ctx, phone, code, notice.params())
}

func (s *AliyunSender) send(ctx context.Context, phone, templateCode string, params map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal sms params: %w", err)
	}

	resp, err := s.client.SendSms(&dysmsapi.SendSmsRequest{
		PhoneNumbers:  tea.String(phone),
		SignName:      tea.String(s.signName),
		TemplateCode:  tea.String(templateCode),
		TemplateParam: tea.String(string(paramsJSON)),
	})
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	if resp.Body == nil || tea.StringValue(resp.Body.Code) != "OK" {
		msg := "unknown error"
		if resp.Body != nil && resp.Body.Message != nil {
			msg = tea.StringValue(resp.Body.Message)
		}
		return fmt.Errorf("send sms rejected: %s", msg)
	}
	return nil
}

// MockMessage 已发送的模拟短信
type MockMessage struct {
	Phone        string
	TemplateCode string
	Params       map[string]string
	SentAt       time.Time
}

// MockSender 记录短信而不发送，未配置短信凭证时使用
type MockSender struct {
	mu       sync.Mutex
	messages []MockMessage
	Err      error
}

// NewMockSender 创建模拟发送器
func NewMockSender() *MockSender {
	return &MockSender{}
}

func (s *MockSender) SendShipmentNotify(ctx context.Context, phone string, notice ShipmentNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.messages = append(s.messages, MockMessage{
		Phone:        phone,
		TemplateCode: TemplateShipmentNotify,
		Params:       notice.params(),
		SentAt:       time.Now(),
	})
	return nil
}

// Messages 返回已发送消息的副本
func (s *MockSender) Messages() []MockMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MockMessage(nil), s.messages...)
}

// Last 最后一条消息，没有时返回 nil
func (s *MockSender) Last() *MockMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	msg := s.messages[len(s.messages)-1]
	return &msg
}

// Reset 清空消息记录
func (s *MockSender) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}
