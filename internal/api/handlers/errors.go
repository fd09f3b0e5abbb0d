package handlers

import "github.com/gin-gonic/gin"

// ErrorResponse is the error body of every endpoint
type ErrorResponse struct {
	Result string `json:"result" example:"error"`
	Reason string `json:"reason" example:"deviceId 7 out of range"`
}

func abortWithError(c *gin.Context, status int, reason string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Result: "error", Reason: reason})
}
