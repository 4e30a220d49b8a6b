package config

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// Default 返回默认配置
// 说明：YAML中缺失的字段保留此处的默认值
func Default() Config {
	return Config{
		Lot: Lot{
			SpotCount: 50,
			MainLanes: 3,
		},
		Traffic: Traffic{
			RoadRate:              6,
			SpawnInterval:         1.5,
			ExitInterval:          1,
			MaxApproaching:        8,
			MaxReplacementCredits: 10,
		},
		Control: Control{
			Step: ControlStep{
				Total:    36000,
				Interval: 0.05,
			},
			Seed: 1,
		},
		Log: Log{
			Enable:   false,
			Interval: 1,
		},
	}
}

// Load 解析YAML配置
// 功能：在默认配置基础上严格解析YAML（未知字段报错），并进行合法性检查
// 参数：data-YAML文本
// 返回：配置对象与错误
func Load(data []byte) (Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// MaxMainLanes 主路车道数上限
const MaxMainLanes = 6

// Validate 检查配置合法性
func (c Config) Validate() error {
	switch {
	case c.Lot.SpotCount < 0:
		return fmt.Errorf("config: lot.spot_count must be >= 0, got %d", c.Lot.SpotCount)
	case c.Lot.MainLanes < 1 || c.Lot.MainLanes > MaxMainLanes:
		return fmt.Errorf("config: lot.main_lanes must be in [1, %d], got %d", MaxMainLanes, c.Lot.MainLanes)
	case c.Traffic.RoadRate < 0:
		return fmt.Errorf("config: traffic.road_rate must be >= 0, got %v", c.Traffic.RoadRate)
	case c.Traffic.SpawnInterval < 0 || c.Traffic.ExitInterval < 0:
		return fmt.Errorf("config: traffic intervals must be >= 0")
	case c.Traffic.MaxApproaching < 1:
		return fmt.Errorf("config: traffic.max_approaching must be >= 1, got %d", c.Traffic.MaxApproaching)
	case c.Traffic.MaxReplacementCredits < 0:
		return fmt.Errorf("config: traffic.max_replacement_credits must be >= 0")
	case c.Control.Step.Interval <= 0:
		return fmt.Errorf("config: control.step.interval must be > 0, got %v", c.Control.Step.Interval)
	case c.Control.Step.Total < 0:
		return fmt.Errorf("config: control.step.total must be >= 0")
	case c.Control.Fill < 0:
		return fmt.Errorf("config: control.fill must be >= 0")
	case c.Log.Enable && c.Log.Interval <= 0:
		return fmt.Errorf("config: log.interval must be > 0 when log is enabled")
	}
	return nil
}
