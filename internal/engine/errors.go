package engine

import (
	"errors"
	"fmt"
)

// ErrVersionConflict 乐观并发冲突
// 请求在读取与写回之间被并发修改,调用方可重试
var ErrVersionConflict = errors.New("request was modified concurrently")

// ErrRequestTerminal 对终态请求的操作
var ErrRequestTerminal = errors.New("request is in terminal state")

// ErrRequestNotFound 请求不存在
var ErrRequestNotFound = errors.New("approval request not found")

// ConfigurationError 配置错误
// 例如需要审批却无法解析工作流,或层级名册解析后为空
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// NewConfigurationError 创建配置错误
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError 非法状态转换
// 拒绝操作并携带原因,不修改任何状态
type InvalidTransitionError struct {
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s", e.Reason)
}

// NewInvalidTransition 创建非法转换错误
func NewInvalidTransition(format string, args ...interface{}) *InvalidTransitionError {
	return &InvalidTransitionError{Reason: fmt.Sprintf(format, args...)}
}

// LimitBreachError 消费超限
// 在账本写入前拒绝,携带被触发限额的标识和剩余额度
type LimitBreachError struct {
	LimitID   string
	Scope     LimitScope
	Period    SpendingPeriod
	Remaining float64
}

func (e *LimitBreachError) Error() string {
	return fmt.Sprintf("spending limit %s breached (scope=%s period=%s remaining=%.2f)",
		e.LimitID, e.Scope, e.Period, e.Remaining)
}
