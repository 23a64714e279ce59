// Package tunerank 是音乐候选重排引擎。
//
// 设计要点：
// - Capability-first: 序列模型、外部特征均为可选能力，缺失时降级到下一条可用路径，永不报错
// - Pipeline-first: 打分、标签、排序、截断通过 Node 串联
// - Strategy-driven: 策略按优先级与 CEL 激活条件选择（hybrid → heuristic）
// - Labels-first: 每个曲目的打分来源以 labels 透传，支持 explain
package tunerank

import (
	"github.com/rushteam/tunerank/core"
	"github.com/rushteam/tunerank/pipeline"
	"github.com/rushteam/tunerank/rerank"
)

// 轻量 facade：便于用户直接 import "tunerank" 使用核心抽象。
type (
	Engine        = rerank.Engine
	EngineOption  = rerank.EngineOption
	Strategy      = rerank.Strategy
	RerankRequest = core.RerankRequest
	RankedResult  = core.RankedResult
	Pipeline      = pipeline.Pipeline
	Node          = pipeline.Node
	Kind          = pipeline.Kind
)

const (
	KindScore       = pipeline.KindScore
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

// NewEngine 创建重排引擎，见 rerank.NewEngine。
var NewEngine = rerank.NewEngine
