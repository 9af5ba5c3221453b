package testtool

import (
	"net/http"
	_ "net/http/pprof" // 註冊 /debug/pprof/*

	"realtime_chat/pkg/config"
	"realtime_chat/pkg/logger"

	"go.uber.org/zap"
)

// StartPprof serve pprof on addr outside production, bind to localhost
func StartPprof(addr string) {
	if config.IsProduction() {
		logger.Log.Info("production environment, pprof disabled")
		return
	}
	if addr == "" {
		addr = "127.0.0.1:6060"
	}

	go func() {
		logger.Log.Info("starting pprof server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Error("pprof server failed", zap.Error(err))
		}
	}()
}
