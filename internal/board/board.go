package board

import (
	"context"
)

// Direction 控制台数据方向
const (
	DirectionSend    = "SEND"
	DirectionReceive = "RECEIVE"
)

// Info 单板信息
type Info struct {
	Role string `json:"role"` // device / host
	Chip string `json:"chip"` // esp32s2 / esp32s3
	Port string `json:"port"` // 实际串口路径
}

// LineSink 控制台行记录回调（用于转存数据库等）
type LineSink func(board string, direction string, line string)

// Board 目标板控制台会话接口
type Board interface {
	// 连接管理
	Connect() error
	Close() error
	IsConnected() bool

	// 控制台操作
	WriteLine(cmd string) error
	// Expect 阻塞等待包含text的控制台行，超时由ctx控制；
	// 返回匹配到的完整行
	Expect(ctx context.Context, text string) (string, error)
	// Subscribe 订阅后续控制台行；返回取消函数
	Subscribe(buf int) (<-chan string, func())

	// 硬件复位
	HardReset() error

	// 单板信息
	Info() Info
}
