package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/tunerank/core"
)

// Pipeline 把一次重排拆成可组合的 Node 链：打分 → 标签 → 排序 → 截断。
type Pipeline struct {
	Nodes []Node
}

// Run 依次执行各 Node；任一 Node 出错时中止并返回带 Node 名称的错误。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}
