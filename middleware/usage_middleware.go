package middleware

import (
	"errors"
	"fmt"
	"ipfs-service-provider/metrics"
	"ipfs-service-provider/model"
	"ipfs-service-provider/service"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// ErrorReporter 程序層級的錯誤回報
type ErrorReporter func(r *http.Request, err error)

// LogErrorReporter 以 zerolog 記錄未處理的錯誤
func LogErrorReporter(logger zerolog.Logger) ErrorReporter {
	l := logger.With().Str("module", "error_reporter").Logger()
	return func(r *http.Request, err error) {
		l.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.RequestURI()).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("請求處理發生未預期錯誤")
	}
}

// UsageMiddleware 在每個 REST 請求完成後寫入一筆使用紀錄
type UsageMiddleware struct {
	logger     zerolog.Logger
	store      *service.UsageStore
	trustProxy bool
	report     ErrorReporter
	now        func() time.Time
}

func NewUsageMiddleware(logger zerolog.Logger, store *service.UsageStore, trustProxy bool, report ErrorReporter) *UsageMiddleware {
	if report == nil {
		report = LogErrorReporter(logger)
	}
	return &UsageMiddleware{
		logger:     logger.With().Str("module", "usage_middleware").Logger(),
		store:      store,
		trustProxy: trustProxy,
		report:     report,
		now:        time.Now,
	}
}

// Handler chi middleware。handler 正常結束才記錄；handler panic 時回傳錯誤狀態並交給 ErrorReporter，不記錄。
func (m *UsageMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		completed := false
		defer func() {
			if completed {
				return
			}
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			err := panicToError(rec)
			status := http.StatusInternalServerError
			var se huma.StatusError
			if errors.As(err, &se) && se.GetStatus() > 0 {
				status = se.GetStatus()
			}

			if ww.Status() == 0 {
				http.Error(ww, err.Error(), status)
			}
			m.report(r, err)
			metrics.RecordUsageIngestion("failed")
		}()

		next.ServeHTTP(ww, r)
		completed = true

		event := model.UsageEvent{
			SourceAddress: m.clientIP(r),
			Path:          r.URL.RequestURI(),
			Method:        r.Method,
			Timestamp:     m.now().UnixMilli(),
		}
		if err := m.store.Append(event); err != nil {
			m.logger.Warn().Err(err).
				Str("ip", event.SourceAddress).
				Str("method", event.Method).
				Str("url", event.Path).
				Msg("使用紀錄缺少欄位，略過")
			metrics.RecordUsageIngestion("rejected")
			return
		}
		metrics.RecordUsageIngestion("recorded")
	})
}

// clientIP 取得呼叫端 IP；trustProxy 時優先使用 X-Forwarded-For 第一個位址
func (m *UsageMiddleware) clientIP(r *http.Request) string {
	if m.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func panicToError(rec interface{}) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("%v", rec)
}
