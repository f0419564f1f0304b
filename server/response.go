package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Hooolee/novel-splitter/apperr"
)

type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Message: "success", Data: data})
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	c.JSON(status, Response{Code: status, Message: err.Error()})
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInput:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindGating, apperr.KindTransport, apperr.KindFormat:
		return http.StatusBadGateway
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
