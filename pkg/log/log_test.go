package log

import (
	"errors"
	"testing"
)

// 覆盖全部导出的日志入口，保证入口点依赖的函数面不被意外收窄。
func TestLoggerSurface(t *testing.T) {
	Init("info", "json", "")

	Info("info message")
	Infof("info %s", "formatted")
	Infow("structured", "key", "value")
	Warn("warn message")
	Warnf("warn %s", "formatted")
	Error("error message", errors.New("boom"))
	Errorf("error %s", "formatted")
	Sync()
}

func TestInitConsoleFormat(t *testing.T) {
	Init("debug", "console", "")
	Info("console mode works")
}

func TestInitInvalidLevelFallsBack(t *testing.T) {
	Init("not-a-level", "json", "")
	Info("defaults to info level")
}
