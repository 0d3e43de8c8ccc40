package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/covenant-hq/church-backend/internal/access"
)

// Body is the standard API response envelope.
type Body struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Message  string      `json:"message,omitempty"`
	ReadOnly bool        `json:"readOnly,omitempty"`
	Locked   bool        `json:"locked,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Message: msg})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Message: msg})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Message: msg})
}

// NotFound sends 404.
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Message: msg})
}

// Conflict sends 409.
func Conflict(c *gin.Context, msg string) {
	c.JSON(http.StatusConflict, Body{Success: false, Message: msg})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Message: msg})
}

// Internal sends 500.
func Internal(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Message: msg})
}

// Deny sends a denial with its status and readOnly/locked flags.
func Deny(c *gin.Context, d *access.Denial) {
	c.JSON(d.Status, Body{Success: false, Message: d.Message, ReadOnly: d.ReadOnly, Locked: d.Locked})
}

// Error sends err as a denial when it is one and as a 500 with msg otherwise.
// It reports whether err was a denial.
func Error(c *gin.Context, err error, msg string) bool {
	if d, ok := access.AsDenial(err); ok {
		Deny(c, d)
		return true
	}
	Internal(c, msg)
	return false
}
