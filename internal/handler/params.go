package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"deposit-core/pkg/errno"
)

// userID reads the :id path parameter.
func userID(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errno.ErrUserNotFound
	}
	return id, nil
}
