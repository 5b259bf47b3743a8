package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// SanitizeString 清理字符串，移除或转义危险字符
func SanitizeString(input string) string {
	// 1. HTML 转义，防止 XSS
	sanitized := html.EscapeString(input)

	// 2. 移除控制字符（除了换行符和制表符）
	var result strings.Builder
	for _, r := range sanitized {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}

// ValidateResourceID 验证资源 ID 格式
// 请求、工作流、限额、规则、委托共用同一套 ID 规则
func ValidateResourceID(id string) error {
	// 1. 检查是否为空
	if id == "" {
		return ErrEmptyID
	}

	// 2. 检查格式（只允许字母、数字、连字符、下划线）
	if !idPattern.MatchString(id) {
		return ErrInvalidIDFormat
	}

	// 3. 检查长度（最大 64 字符）
	if len(id) > 64 {
		return ErrIDTooLong
	}

	return nil
}

// ValidateName 验证名称
func ValidateName(name string) error {
	// 1. 检查是否为空或仅包含空白字符
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyName
	}

	// 2. 检查长度（最大 255 字符）
	if len(trimmed) > 255 {
		return ErrNameTooLong
	}

	return nil
}

// TrimAndValidate 清理并验证字符串
func TrimAndValidate(s string, maxLen int) (string, error) {
	// 1. 去除首尾空白字符
	trimmed := strings.TrimSpace(s)

	// 2. 检查是否为空
	if trimmed == "" {
		return "", ErrEmptyString
	}

	// 3. 检查长度
	if maxLen > 0 && len(trimmed) > maxLen {
		return "", ErrStringTooLong
	}

	// 4. 清理危险字符
	sanitized := SanitizeString(trimmed)

	return sanitized, nil
}

// 错误定义
var (
	ErrEmptyName       = &ValidationError{Code: "EMPTY_NAME", Message: "name cannot be empty"}
	ErrNameTooLong     = &ValidationError{Code: "NAME_TOO_LONG", Message: "name exceeds maximum length"}
	ErrEmptyID         = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong       = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrEmptyString     = &ValidationError{Code: "EMPTY_STRING", Message: "string cannot be empty"}
	ErrStringTooLong   = &ValidationError{Code: "STRING_TOO_LONG", Message: "string exceeds maximum length"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
