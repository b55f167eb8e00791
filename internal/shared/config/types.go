package config

import "time"

type Config struct {
	App       AppConfig        `yaml:"app" mapstructure:"app"`
	HTTP      HTTPServerConfig `yaml:"http" mapstructure:"http"`
	GRPC      GRPCServerConfig `yaml:"grpc" mapstructure:"grpc"`
	Storage   StorageConfig    `yaml:"storage" mapstructure:"storage"`
	MySQL     MySQLConfig      `yaml:"mysql" mapstructure:"mysql"`
	Postgres  PostgresConfig   `yaml:"postgres" mapstructure:"postgres"`
	MongoDB   MongoDBConfig    `yaml:"mongodb" mapstructure:"mongodb"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
	Runtime   RuntimeConfig    `yaml:"runtime" mapstructure:"runtime"`
	RateLimit RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	// Game 覆盖 gameconfig 的内置数值，键名同 Balance 的 mapstructure 标签。
	Game map[string]any `yaml:"game" mapstructure:"game"`
}

type AppConfig struct {
	Name   string `yaml:"name" mapstructure:"name"`
	NodeID int64  `yaml:"node_id" mapstructure:"node_id"` // snowflake 节点号
}

type HTTPServerConfig struct {
	Host        string        `yaml:"host" mapstructure:"host"`
	Port        int           `yaml:"port" mapstructure:"port"`
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
}

type GRPCServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// StorageConfig 选择仓储实现：memory、mysql、postgres、mongodb。
type StorageConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
}

type MySQLConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	DBName   string `yaml:"dbname" mapstructure:"dbname"`
	Charset  string `yaml:"charset" mapstructure:"charset"`
	MaxIdle  int    `yaml:"max_idle" mapstructure:"max_idle"`
	MaxConn  int    `yaml:"max_conn" mapstructure:"max_conn"`
}

type PostgresConfig struct {
	DSN     string `yaml:"dsn" mapstructure:"dsn"`
	MaxIdle int    `yaml:"max_idle" mapstructure:"max_idle"`
	MaxConn int    `yaml:"max_conn" mapstructure:"max_conn"`
}

type MongoDBConfig struct {
	URI             string `yaml:"uri" mapstructure:"uri"`
	Database        string `yaml:"database" mapstructure:"database"`
	ConnectTimeoutS int    `yaml:"connect_timeout_s" mapstructure:"connect_timeout_s"`
	Transactions    bool   `yaml:"transactions" mapstructure:"transactions"`
}

type LogConfig struct {
	FileDir    string `yaml:"file_dir" mapstructure:"file_dir"`
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"` // days
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
	Level      string `yaml:"level" mapstructure:"level"` // debug/info/warn/error...
	Dev        bool   `yaml:"dev" mapstructure:"dev"`
}

type RuntimeConfig struct {
	AskTimeout    time.Duration `yaml:"ask_timeout" mapstructure:"ask_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval"`
	// CloseTimeout 停机时等待落库队列写完的上限。
	CloseTimeout time.Duration `yaml:"close_timeout" mapstructure:"close_timeout"`
}

// RateLimitConfig 每个玩家的命令限流，RPS 不大于 0 表示关闭。
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" mapstructure:"rps"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
}
