package board

import (
	"fmt"
	"os"

	"github.com/wfunc/usb-bench/internal/config"
	"github.com/wfunc/usb-bench/internal/errors"
	"github.com/wfunc/usb-bench/internal/logger"
	"go.uber.org/zap"
)

// PortExists 检查串口设备节点是否存在
func PortExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FindPort 扫描/dev下匹配pattern的串口设备，返回第一个存在的路径；
// exclude指定要跳过的路径（已被另一块板占用）
func FindPort(pattern string, exclude string) string {
	if pattern == "" {
		pattern = "ttyUSB"
	}

	for i := 0; i < 10; i++ {
		path := fmt.Sprintf("/dev/%s%d", pattern, i)
		if path == exclude {
			continue
		}
		if PortExists(path) {
			logger.GetModuleLogger("board").Info("发现串口设备",
				zap.String("pattern", pattern),
				zap.String("port", path))
			return path
		}
	}

	return ""
}

// ResolvePorts 解析device/host两块板的串口路径
//
// 显式配置的路径原样使用；配成auto的按pattern扫描，device先分配，
// host扫描时排除device已占用的路径。两块板解析到同一串口是配置错误。
func ResolvePorts(device, host *config.BoardConfig) (string, string, error) {
	devicePort := device.Port
	if devicePort == "auto" {
		devicePort = FindPort(device.Pattern, "")
		if devicePort == "" {
			return "", "", errors.Newf(errors.ErrBoardNotFound, "role=%s pattern=%s", device.Role, device.Pattern)
		}
	}

	hostPort := host.Port
	if hostPort == "auto" {
		hostPort = FindPort(host.Pattern, devicePort)
		if hostPort == "" {
			return "", "", errors.Newf(errors.ErrBoardNotFound, "role=%s pattern=%s", host.Role, host.Pattern)
		}
	}

	if devicePort == hostPort {
		return "", "", errors.Newf(errors.ErrBoardConflict, "port=%s", devicePort)
	}

	return devicePort, hostPort, nil
}
