package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/captain-focus/backend/internal/errs"
)

// ErrorBody 统一的错误响应结构
type ErrorBody struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

// Now 返回响应中使用的时间戳
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// RespondError 发送带错误码的错误响应
func RespondError(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorBody{
		Error:     message,
		Code:      code,
		Timestamp: Now(),
	})
}

// RespondAppError 根据错误分类选择状态码与错误码
func RespondAppError(w http.ResponseWriter, summary string, err error) {
	kind := errs.KindOf(err)
	body := ErrorBody{
		Error:     summary,
		Code:      errs.Code(kind),
		Timestamp: Now(),
	}

	var appErr *errs.Error
	if errors.As(err, &appErr) && appErr.Err != nil {
		body.Message = appErr.Err.Error()
	} else if err != nil {
		body.Message = err.Error()
	}

	RespondJSON(w, errs.HTTPStatus(kind), body)
}

// MaxBodyBytes 请求体大小上限
const MaxBodyBytes = 10 << 20

// DecodeJSON 解析JSON请求体；空请求体视为空对象，超过 MaxBodyBytes 视为错误
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
