package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 运维接口的统一响应，Code 与 HTTP 状态一致
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, Response{Code: status, Msg: msg, Data: data})
}

// Success 200
func Success(c *gin.Context, data any) {
	respond(c, http.StatusOK, "成功", data)
}

// Created 201，用于警告、邮件等新增条目
func Created(c *gin.Context, data any) {
	respond(c, http.StatusCreated, "已创建", data)
}

// BadRequest 400
func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, msg)
}

// Error 错误响应，不带数据
func Error(c *gin.Context, status int, msg string) {
	respond(c, status, msg, nil)
}

// ErrorWithData 错误响应并附带结果（例如部分失败的保存报告）
func ErrorWithData(c *gin.Context, status int, msg string, data any) {
	respond(c, status, msg, data)
}
