package service

import "errors"

var (
	// ErrInvalidArgument 参数不合法
	ErrInvalidArgument = errors.New("参数不合法")
	// ErrNoCustomers 没有活跃用户，无法计算每户费率
	ErrNoCustomers = errors.New("没有活跃的公用事业用户")
	// ErrEmailDisabled 邮件服务未启用
	ErrEmailDisabled = errors.New("邮件服务未启用，请配置 WILEY_EMAIL_ENABLED=true")
)
