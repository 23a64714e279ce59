package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/tunerank/pkg/dsl"
	"github.com/rushteam/tunerank/rank"
	"github.com/rushteam/tunerank/rerank"
)

// 使用配置驱动时，需在 main 或入口处 import _ "github.com/rushteam/tunerank/config/builders"
// 以触发内置策略（hybrid、heuristic）的 init 注册。

// StrategyDeps 是构建策略时可用的共享打分组件
type StrategyDeps struct {
	Heuristic  *rank.Heuristic
	Sequential *rank.Sequential
}

// StrategyBuilder 根据依赖构建一种打分策略。when 为编译后的激活条件，
// 配置中未写 when 时为 nil，由 builder 决定默认条件。
type StrategyBuilder func(deps StrategyDeps, when *dsl.Condition) (rerank.Strategy, error)

var (
	defaultBuilders   = make(map[string]StrategyBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种策略的构建逻辑。
// 建议在各组件的 init 中调用，例如：func init() { config.Register("hybrid", BuildHybrid) }
func Register(name string, builder StrategyBuilder) {
	if name == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[name] = builder
}

// SupportedTypes 返回当前已注册的策略名（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func lookup(name string) (StrategyBuilder, bool) {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	b, ok := defaultBuilders[name]
	return b, ok
}

// ValidateStrategies 校验所有策略均已注册、激活条件可编译；
// 若有未支持的策略则返回包含已支持列表的错误。
func ValidateStrategies(strategies []StrategyConfig) error {
	supported := SupportedTypes()
	for i, sc := range strategies {
		if _, ok := lookup(sc.Name); !ok {
			return fmt.Errorf("strategies[%d]: unsupported strategy %q (supported: %v)", i, sc.Name, supported)
		}
		if _, err := dsl.Compile(sc.When); err != nil {
			return fmt.Errorf("strategies[%d] %s: %w", i, sc.Name, err)
		}
	}
	return nil
}

// BuildStrategies 按配置顺序构建策略列表，顺序即优先级。
func BuildStrategies(strategies []StrategyConfig, deps StrategyDeps) ([]rerank.Strategy, error) {
	if err := ValidateStrategies(strategies); err != nil {
		return nil, err
	}
	out := make([]rerank.Strategy, 0, len(strategies))
	for _, sc := range strategies {
		builder, _ := lookup(sc.Name)
		var when *dsl.Condition
		if sc.When != "" {
			when = dsl.MustCompile(sc.When)
		}
		s, err := builder(deps, when)
		if err != nil {
			return nil, fmt.Errorf("build strategy %s: %w", sc.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}
