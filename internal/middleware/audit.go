package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/covenant-hq/church-backend/internal/audit"
	"github.com/covenant-hq/church-backend/internal/permissions"
	"github.com/covenant-hq/church-backend/internal/requestctx"
)

const maxAuditBody = 64 << 10

// Audit observes mutating requests after the rest of the chain has run and records them in the
// background. It never changes the response.
func (p *Pipeline) Audit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p.recorder == nil || !permissions.IsMutating(c.Request.Method) {
			c.Next()
			return
		}
		body := peekJSON(c.Request)

		c.Next()

		var churchID *uuid.UUID
		if ac := requestctx.ActiveChurch(c); ac != nil {
			id := ac.ID
			churchID = &id
		}
		p.recorder.Record(audit.Build(audit.Input{
			User:     requestctx.User(c),
			ChurchID: churchID,
			Request:  c.Request,
			Params:   c.Params,
			Body:     body,
			Status:   c.Writer.Status(),
			At:       time.Now(),
		}))
	}
}

// peekJSON decodes up to maxAuditBody bytes of a JSON body and puts them back for the handler.
func peekJSON(r *http.Request) map[string]interface{} {
	if r.Body == nil || !strings.Contains(r.Header.Get("Content-Type"), "json") {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxAuditBody))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), r.Body))
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if json.Unmarshal(raw, &m) != nil {
		return nil
	}
	return m
}
