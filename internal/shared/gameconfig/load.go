package gameconfig

import (
	"fmt"
	_ "time/tzdata"

	"github.com/go-viper/mapstructure/v2"
)

// Load 在默认数值上叠加 overrides（通常来自配置文件的 game 段），并校验。
// 覆盖某个建筑或兵种时需给出该项的完整字段。
func Load(overrides map[string]any) (*Balance, error) {
	b := Default()
	if len(overrides) != 0 {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           &b,
		})
		if err != nil {
			return nil, fmt.Errorf("gameconfig: build decoder: %w", err)
		}
		if err := dec.Decode(overrides); err != nil {
			return nil, fmt.Errorf("gameconfig: decode overrides: %w", err)
		}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// MustDefault 返回校验过的默认数值，测试和工具使用。
func MustDefault() *Balance {
	b, err := Load(nil)
	if err != nil {
		panic(err)
	}
	return b
}
