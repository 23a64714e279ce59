package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义策略激活条件可用的变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("model_loaded", cel.BoolType),
		cel.Variable("mappable", cel.IntType),
		cel.Variable("sequence_len", cel.IntType),
		cel.Variable("candidates", cel.IntType),
		cel.Variable("features_available", cel.BoolType),
		cel.Variable("has_profile", cel.BoolType),
		cel.Variable("mood", cel.StringType),
		cel.Variable("activity", cel.StringType),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Facts 是一次重排请求的数据充足度快照，作为策略激活条件的输入。
type Facts struct {
	ModelLoaded       bool   // 序列模型是否已加载
	Mappable          int    // 最近序列中可映射到模型词表的条目数
	SequenceLen       int    // 最近序列长度
	Candidates        int    // 候选数
	FeaturesAvailable bool   // 外部特征是否拉取成功
	HasProfile        bool   // 是否有兴趣画像
	Mood              string // 情绪提示
	Activity          string // 活动提示
}

func (f Facts) activation() map[string]any {
	return map[string]any{
		"model_loaded":       f.ModelLoaded,
		"mappable":           int64(f.Mappable),
		"sequence_len":       int64(f.SequenceLen),
		"candidates":         int64(f.Candidates),
		"features_available": f.FeaturesAvailable,
		"has_profile":        f.HasProfile,
		"mood":               f.Mood,
		"activity":           f.Activity,
	}
}

// Condition 是编译后的策略激活条件，使用 CEL (Common Expression Language) 实现。
// 编译一次，可被任意并发请求复用。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：model_loaded
//   - 数值：mappable >= 3 / candidates > 10
//   - 逻辑：model_loaded && mappable >= 3
//   - 字符串：activity == "PARTY" || mood in ["HAPPY", "ENERGETIC"]
//
// 空表达式恒为 true。
type Condition struct {
	expr string
	prg  cel.Program
}

// Compile 编译激活条件；表达式必须返回 bool。
func Compile(expr string) (*Condition, error) {
	if expr == "" {
		return &Condition{}, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression %q must return bool, got %v", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Condition{expr: expr, prg: prg}, nil
}

// MustCompile 与 Compile 相同，编译失败时 panic。仅用于内置常量表达式。
func MustCompile(expr string) *Condition {
	c, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// String 返回原始表达式。
func (c *Condition) String() string {
	if c == nil || c.expr == "" {
		return "true"
	}
	return c.expr
}

// Evaluate 对给定的数据快照求值。
func (c *Condition) Evaluate(facts Facts) (bool, error) {
	if c == nil || c.prg == nil {
		return true, nil
	}

	out, _, err := c.prg.Eval(facts.activation())
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", c.expr, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q must return boolean, got %T", c.expr, out.Value())
	}
	return result, nil
}
