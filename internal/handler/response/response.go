package response

import (
	"net/http"

	"deposit-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

// Response defines the standard JSON structure
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// Success returns a success response with data
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = gin.H{} // Return empty object instead of null
	}
	c.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error returns an error response. Errors without an errno are reported as
// a generic internal error so driver or provider text never leaks.
func Error(c *gin.Context, err error) {
	code, msg := errno.Decode(err)
	if code == errno.InternalServerError.Code {
		msg = errno.InternalServerError.Message
		_ = c.Error(err) // keep the cause for the access log
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: msg,
		Data:    gin.H{},
	})
}

// Abort stops the chain with an HTTP status, for middleware rejections.
func Abort(c *gin.Context, status int, err error) {
	code, msg := errno.Decode(err)
	c.AbortWithStatusJSON(status, Response{
		Code:    code,
		Message: msg,
		Data:    gin.H{},
	})
}
