package config

// Lot 停车场规模配置
type Lot struct {
	SpotCount int `yaml:"spot_count"` // 车位数量
	MainLanes int `yaml:"main_lanes"` // 主路车道数
}

// Traffic 交通需求配置
// 说明：RoadRate为过境车流量（辆/分钟），按每步伯努利抽样生成
type Traffic struct {
	RoadRate              float64 `yaml:"road_rate"`                         // 过境车流量（辆/分钟）
	SpawnInterval         float64 `yaml:"spawn_interval,omitempty"`          // 入场车辆的生成间隔（秒）
	ExitInterval          float64 `yaml:"exit_interval,omitempty"`           // 离场车辆的出库间隔（秒）
	MaxApproaching        int     `yaml:"max_approaching,omitempty"`         // 主路上同时寻找入口的车辆上限
	MaxReplacementCredits int     `yaml:"max_replacement_credits,omitempty"` // 错过入口后补发生成名额的上限
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// Control 模拟器控制配置
// 说明：Fill与ExodusAfter只被无界面运行器使用，仿真核心本身不读取
type Control struct {
	Step        ControlStep `yaml:"step"`
	Seed        uint64      `yaml:"seed"`
	Fill        int         `yaml:"fill,omitempty"`         // 启动时入场的车辆数
	ExodusAfter float64     `yaml:"exodus_after,omitempty"` // 进入WAITING后多少秒开始离场
}

// Log 快照日志配置
type Log struct {
	Enable   bool    `yaml:"enable"`
	Interval float64 `yaml:"interval,omitempty"` // 快照间隔（秒）
}

// Metrics 监控指标配置
type Metrics struct {
	Listen string `yaml:"listen,omitempty"` // Prometheus HTTP监听地址，为空则不启动
}

// Config YAML配置文件的根结构
type Config struct {
	Lot     Lot     `yaml:"lot"`
	Traffic Traffic `yaml:"traffic"`
	Control Control `yaml:"control"`
	Log     Log     `yaml:"log,omitempty"`
	Metrics Metrics `yaml:"metrics,omitempty"`
}
