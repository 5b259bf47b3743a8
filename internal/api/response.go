package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应信封
// @Description code 为 0 表示成功,非 0 为失败
type Response struct {
	Code    int         `json:"code" example:"0"`          // 状态码
	Message string      `json:"message" example:"success"` // 响应消息
	Data    interface{} `json:"data"`                      // 业务数据
}

// ErrorResponse 错误响应信封
// @Description 错误码与可读的错误信息
type ErrorResponse struct {
	Code    int    `json:"code" example:"400"`                           // 错误码,与 HTTP 状态码一致
	Message string `json:"message" example:"invalid request"`            // 错误消息
	Detail  string `json:"detail,omitempty" example:"validation failed"` // 错误详情
}

// PaginatedResponse 分页响应信封
type PaginatedResponse struct {
	Code       int            `json:"code" example:"0"`
	Message    string         `json:"message" example:"success"`
	Data       interface{}    `json:"data"`       // 数据列表
	Pagination PaginationInfo `json:"pagination"` // 分页信息
}

// PaginationInfo 分页信息
type PaginationInfo struct {
	Page      int   `json:"page" example:"1"`       // 当前页码
	PageSize  int   `json:"page_size" example:"20"` // 每页数量
	Total     int64 `json:"total" example:"100"`    // 总记录数
	TotalPage int   `json:"total_page" example:"5"` // 总页数
}

// Success 写出成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// Error 写出错误响应
// code 在合法 HTTP 状态码范围内时同时作为响应状态码
func Error(c *gin.Context, code int, message, detail string) {
	status := http.StatusInternalServerError
	if code >= 400 && code < 600 {
		status = code
	}
	c.JSON(status, ErrorResponse{Code: code, Message: message, Detail: detail})
}

// Paginated 写出分页响应
func Paginated(c *gin.Context, data interface{}, pagination PaginationInfo) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Code:       0,
		Message:    "success",
		Data:       data,
		Pagination: pagination,
	})
}
