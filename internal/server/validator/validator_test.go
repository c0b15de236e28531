package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/tier-router/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bind(t *testing.T, body string) error {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req api.ChatRequest
	return c.ShouldBindJSON(&req)
}

func TestParseValidationError(t *testing.T) {
	InitValidator()

	tests := []struct {
		name  string
		body  string
		field string
		msg   string
	}{
		{"missing messages", `{}`, "messages", "required"},
		{"empty messages", `{"messages":[]}`, "messages", "messages"},
		{"bad role", `{"messages":[{"role":"robot","content":"x"}]}`, "messages[0].role", "must be one of [system, user, assistant, function]"},
		{"missing content", `{"messages":[{"role":"user"}]}`, "messages[0].content", "required"},
		{"temperature range", `{"messages":[{"role":"user","content":"x"}],"temperature":3}`, "temperature", "temperature"},
		{"wrong type", `{"messages":"hello"}`, "messages", "must be of type"},
		{"garbage", `{not json`, "body", "Invalid request body"},
		{"empty", ``, "body", "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bind(t, tt.body)
			require.Error(t, err)
			fields := ParseValidationError(err)
			require.Contains(t, fields, tt.field)
			assert.Contains(t, fields[tt.field], tt.msg)
		})
	}
}

func TestValidRequestBinds(t *testing.T) {
	InitValidator()
	assert.NoError(t, bind(t, `{"messages":[{"role":"user","content":"Hi"}],"stop":"END"}`))
}
