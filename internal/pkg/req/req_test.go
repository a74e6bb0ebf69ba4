package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dash/internal/pkg/errs"
)

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func TestBindJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
	}{
		{"valid", "application/json", `{"username":"alice","password":"pw"}`, false},
		{"charset suffix", "application/json; charset=utf-8", `{"username":"alice"}`, false},
		{"wrong content type", "text/plain", `{"username":"alice"}`, true},
		{"malformed", "application/json", `{"username":`, true},
		{"unknown field", "application/json", `{"username":"alice","role":"admin"}`, true},
		{"trailing data", "application/json", `{"username":"alice"} {}`, true},
		{"too large", "application/json", `{"username":"` + strings.Repeat("a", int(MaxBodyBytes)) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()

			var dst loginBody
			customErr := BindJSON(w, r, &dst)
			if !tt.wantErr {
				require.Nil(t, customErr)
				assert.Equal(t, "alice", dst.Username)
				return
			}

			require.NotNil(t, customErr)
			assert.Equal(t, errs.MissingFields, customErr.Kind)
			assert.Equal(t, http.StatusBadRequest, customErr.Status)
		})
	}
}
