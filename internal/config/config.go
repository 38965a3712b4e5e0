package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Harness   HarnessConfig   `mapstructure:"harness"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
	System    SystemConfig    `mapstructure:"system"`
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
}

// HarnessConfig 测试台配置
type HarnessConfig struct {
	Device         BoardConfig   `mapstructure:"device"` // 被测设备板
	Host           BoardConfig   `mapstructure:"host"`   // 主机板
	MenuPrompt     string        `mapstructure:"menu_prompt"`
	ReadySentinel  string        `mapstructure:"ready_sentinel"`
	PrepareTimeout time.Duration `mapstructure:"prepare_timeout"`
	CaseTimeout    time.Duration `mapstructure:"case_timeout"`
	ResetSettle    time.Duration `mapstructure:"reset_settle"`
	Phases         []PhaseConfig `mapstructure:"phases"`
}

// BoardConfig 单板串口配置
type BoardConfig struct {
	Role        string        `mapstructure:"role"`
	Chip        string        `mapstructure:"chip"`
	Port        string        `mapstructure:"port"`    // 具体路径或 "auto"
	Pattern     string        `mapstructure:"pattern"` // auto模式下的设备名模式（如 "ttyUSB"）
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// PhaseConfig 测试阶段配置
type PhaseConfig struct {
	Name        string `mapstructure:"name"`
	DeviceMode  string `mapstructure:"device_mode"` // 写入设备板的模式选择命令
	Group       string `mapstructure:"group"`       // 主机板上要运行的测试组
	ResetBefore bool   `mapstructure:"reset_before"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT      JWTConfig      `mapstructure:"jwt"`
	Operator OperatorConfig `mapstructure:"operator"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// OperatorConfig 操作员账号配置
type OperatorConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt哈希
}

// SystemConfig 系统配置
type SystemConfig struct {
	Timezone string `mapstructure:"timezone"`
	MaxProcs int    `mapstructure:"max_procs"`
}

// SupportedChips 支持的芯片型号
var SupportedChips = []string{"esp32s2", "esp32s3"}

// Validate 校验测试台配置
func (c *HarnessConfig) Validate() error {
	boards := []*BoardConfig{&c.Device, &c.Host}
	for _, b := range boards {
		chipOK := false
		for _, chip := range SupportedChips {
			if b.Chip == chip {
				chipOK = true
				break
			}
		}
		if !chipOK {
			return fmt.Errorf("不支持的芯片型号: %s (支持: %s)", b.Chip, strings.Join(SupportedChips, ", "))
		}
	}
	// 两块板必须是不同的串口（auto模式在发现阶段检查）
	if c.Device.Port != "auto" && c.Device.Port == c.Host.Port {
		return fmt.Errorf("设备板和主机板不能使用同一串口: %s", c.Device.Port)
	}
	if len(c.Phases) == 0 {
		return fmt.Errorf("至少需要一个测试阶段")
	}
	return nil
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()

		// 设置配置文件路径
		if configPath != "" {
			v.SetConfigFile(configPath)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath("./config")
			v.AddConfigPath(".")
		}

		// 设置环境变量前缀
		v.SetEnvPrefix("USB_BENCH")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		// 设置默认值
		setDefaults(v)

		// 读取配置文件
		if err = v.ReadInConfig(); err != nil {
			// 如果配置文件不存在，使用默认配置
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				err = nil
			} else {
				return
			}
		}

		// 解析配置到结构体
		cfg = &Config{}
		if err = v.Unmarshal(cfg); err != nil {
			return
		}

		err = cfg.Harness.Validate()
	})

	return err
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/usb-bench.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	// WebSocket默认配置
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.write_timeout", "10s")

	// 测试台默认配置
	v.SetDefault("harness.device.role", "device")
	v.SetDefault("harness.device.chip", "esp32s3")
	v.SetDefault("harness.device.port", "auto")
	v.SetDefault("harness.device.pattern", "ttyUSB")
	v.SetDefault("harness.device.baud_rate", 115200)
	v.SetDefault("harness.device.data_bits", 8)
	v.SetDefault("harness.device.stop_bits", 1)
	v.SetDefault("harness.device.parity", "N")
	v.SetDefault("harness.device.read_timeout", "100ms")
	v.SetDefault("harness.host.role", "host")
	v.SetDefault("harness.host.chip", "esp32s3")
	v.SetDefault("harness.host.port", "auto")
	v.SetDefault("harness.host.pattern", "ttyUSB")
	v.SetDefault("harness.host.baud_rate", 115200)
	v.SetDefault("harness.host.data_bits", 8)
	v.SetDefault("harness.host.stop_bits", 1)
	v.SetDefault("harness.host.parity", "N")
	v.SetDefault("harness.host.read_timeout", "100ms")
	v.SetDefault("harness.menu_prompt", "Press ENTER to see the list of tests.")
	v.SetDefault("harness.ready_sentinel", "USB initialization DONE")
	v.SetDefault("harness.prepare_timeout", "30s")
	v.SetDefault("harness.case_timeout", "120s")
	v.SetDefault("harness.reset_settle", "500ms")
	v.SetDefault("harness.phases", []map[string]interface{}{
		{
			"name":         "cdc",
			"device_mode":  "[cdc_acm_device]",
			"group":        "cdc_acm",
			"reset_before": false,
		},
		{
			"name":         "msc",
			"device_mode":  "[usb_msc_device]",
			"group":        "usb_msc",
			"reset_before": true,
		},
	})

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "both")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "usb-bench.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	// 安全默认配置
	v.SetDefault("security.jwt.secret", "")
	v.SetDefault("security.jwt.expire_hours", 24)
	v.SetDefault("security.operator.username", "operator")
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Harness.Validate(); err != nil {
			fmt.Printf("配置校验失败: %v\n", err)
			return
		}

		cfg = newCfg

		if callback != nil {
			callback(cfg)
		}

		fmt.Println("配置已重新加载")
	})
}

// GetString 获取字符串配置
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt 获取整数配置
func GetInt(key string) int {
	return v.GetInt(key)
}

// GetBool 获取布尔配置
func GetBool(key string) bool {
	return v.GetBool(key)
}

// GetDuration 获取时间间隔配置
func GetDuration(key string) time.Duration {
	return v.GetDuration(key)
}

// IsSet 检查配置项是否存在
func IsSet(key string) bool {
	return v.IsSet(key)
}

// Set 动态设置配置值
func Set(key string, value interface{}) {
	v.Set(key, value)
}
