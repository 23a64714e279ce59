package rerank

import (
	"context"

	"github.com/rushteam/tunerank/core"
	"github.com/rushteam/tunerank/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，在排序节点之后截取前 N 个曲目。
//
// 示例：
//
//	p := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &rerank.ScoreNode{...},     // 打分
//	        &rerank.SortNode{},         // 排序
//	        &rerank.TopNNode{N: limit}, // 截取 limit 个
//	    },
//	}
type TopNNode struct {
	// N 要保留的曲目数量
	// 如果 N <= 0，则返回所有曲目（不截断）
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.N <= 0 || len(items) <= n.N {
		return items, nil
	}
	return items[:n.N], nil
}
