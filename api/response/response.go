package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"letter-portal/logic/routing"
)

type Response struct {
	Code      int         `json:"code"` // 0:成功, -1:失败
	Msg       string      `json:"msg"`
	Error     string      `json:"error,omitempty"` // 工作流错误码, 如 PRECONDITION_FAILED
	Retryable bool        `json:"retryable,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// Fail 参数错误, 返回 400
func Fail(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:  -1,
		Msg:   msg,
		Error: string(routing.CodeInvalidArgument),
	})
}

// FailWithError 按工作流错误码选择 HTTP 状态. 非工作流错误一律 500, 不暴露内部信息
func FailWithError(c *gin.Context, err error) {
	resp := Response{Code: -1, Msg: "internal error", Error: string(routing.CodeInternal)}

	var we *routing.Error
	if errors.As(err, &we) {
		resp.Msg = we.Message
		resp.Error = string(we.Code)
		resp.Retryable = we.Retryable
	}
	c.JSON(StatusOf(routing.Code(resp.Error)), resp)
}

func StatusOf(code routing.Code) int {
	switch code {
	case routing.CodeInvalidArgument:
		return http.StatusBadRequest
	case routing.CodeNotFound:
		return http.StatusNotFound
	case routing.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case routing.CodeConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
