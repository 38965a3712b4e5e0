//go:build linux

package board

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ESP系列开发板的自动下载电路把RTS接EN（复位）、DTR接GPIO0（启动模式）。
// 复位进入正常运行模式：DTR保持高、RTS拉低再释放。

const resetPulse = 100 * time.Millisecond

// PulseReset 通过串口调制解调控制线对目标板做硬件复位
func PulseReset(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	fd := int(f.Fd())

	// 清除DTR（GPIO0保持高，正常启动）
	if err := modemBits(fd, unix.TIOCMBIC, unix.TIOCM_DTR); err != nil {
		return err
	}

	// RTS脉冲（EN拉低复位）
	if err := modemBits(fd, unix.TIOCMBIS, unix.TIOCM_RTS); err != nil {
		return err
	}
	time.Sleep(resetPulse)
	if err := modemBits(fd, unix.TIOCMBIC, unix.TIOCM_RTS); err != nil {
		return err
	}

	return nil
}

// modemBits 设置/清除调制解调控制位
func modemBits(fd int, op uint, bits int) error {
	return unix.IoctlSetPointerInt(fd, op, bits)
}
