package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondError escreve {"error": msg} e interrompe a cadeia de handlers.
func RespondError(c *gin.Context, msg string, code int) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func RespondSuccess(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
