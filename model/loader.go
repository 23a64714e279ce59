package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rushteam/tunerank/core"
)

var (
	// ErrArtifactNotFound 表示模型文件不存在（启动时视为 NoModel，热更新时视为错误）
	ErrArtifactNotFound = core.NewDomainError(core.ModuleModel, core.ErrorCodeNotFound, "model: artifact not found")

	// ErrInvalidArtifact 表示模型文件损坏或形状不一致
	ErrInvalidArtifact = core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "model: invalid artifact")
)

// Artifact 是离线训练任务导出的序列模型文件内容。
//
// 文件格式按扩展名决定：.json 为 JSON，其他（推荐 .msgpack）为 MessagePack。
// 词表二选一：Vocabulary（trackID -> 下标）或 Items（Items[i] 的下标为 i+1）。
// Endpoint 非空时使用远程推理（RPCModel），否则使用本地权重（EmbeddingModel）。
type Artifact struct {
	Name               string         `msgpack:"name" json:"name"`
	Vocabulary         map[string]int `msgpack:"vocabulary,omitempty" json:"vocabulary,omitempty"`
	Items              []string       `msgpack:"items,omitempty" json:"items,omitempty"`
	ItemEmbeddings     [][]float64    `msgpack:"item_embeddings,omitempty" json:"item_embeddings,omitempty"`
	PositionEmbeddings [][]float64    `msgpack:"position_embeddings,omitempty" json:"position_embeddings,omitempty"`
	OutputBias         []float64      `msgpack:"output_bias,omitempty" json:"output_bias,omitempty"`
	Window             int            `msgpack:"window,omitempty" json:"window,omitempty"`
	Endpoint           string         `msgpack:"endpoint,omitempty" json:"endpoint,omitempty"`
	TimeoutMs          int            `msgpack:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// LoadSequential 加载序列模型。
//
//   - path 为空或文件不存在：返回 NoModel，err 为 nil（正常的运行模式）
//   - 文件损坏或形状不一致：返回 NoModel 与错误，调用方记录日志后以 NoModel 运行
func LoadSequential(path string) (Capability, error) {
	if path == "" {
		return NoModel(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NoModel(), nil
		}
		return NoModel(), fmt.Errorf("read model artifact %s: %w", path, err)
	}

	var art Artifact
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &art)
	} else {
		err = msgpack.Unmarshal(data, &art)
	}
	if err != nil {
		return NoModel(), core.WrapDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("model: decode %s", path), err)
	}
	return art.Build()
}

// Build 由 Artifact 构建模型能力。
func (a *Artifact) Build() (Capability, error) {
	vocab, err := a.vocabulary()
	if err != nil {
		return NoModel(), core.WrapDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, ErrInvalidArtifact.Message, err)
	}
	if vocab.Len() == 0 {
		return NoModel(), core.WrapDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, ErrInvalidArtifact.Message,
			errors.New("empty vocabulary"))
	}

	if a.Endpoint != "" {
		m := NewRPCModel(a.Name, a.Endpoint, time.Duration(a.TimeoutMs)*time.Millisecond)
		return NewLoaded(m, vocab), nil
	}

	m, err := NewEmbeddingModel(a.Name, a.ItemEmbeddings, a.PositionEmbeddings, a.OutputBias, a.Window)
	if err != nil {
		return NoModel(), core.WrapDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, ErrInvalidArtifact.Message, err)
	}
	if hi := vocab.MaxIndex(); hi >= m.VocabSize() {
		return NoModel(), core.WrapDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, ErrInvalidArtifact.Message,
			fmt.Errorf("vocabulary index %d exceeds %d embedding rows", hi, m.VocabSize()))
	}
	return NewLoaded(m, vocab), nil
}

func (a *Artifact) vocabulary() (*Vocabulary, error) {
	if len(a.Vocabulary) > 0 {
		return NewVocabularyFromMap(a.Vocabulary)
	}
	return NewVocabulary(a.Items), nil
}

// Reload 从 path 重新加载模型并原子替换。
// 加载失败或文件不存在时保留当前模型并返回错误。
func (h *Holder) Reload(path string) (Capability, error) {
	c, err := LoadSequential(path)
	if err != nil {
		ModelReloadTotal.WithLabelValues("error").Inc()
		return h.Load(), err
	}
	if !c.Loaded() {
		ModelReloadTotal.WithLabelValues("missing").Inc()
		return h.Load(), fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}
	h.Swap(c)
	ModelReloadTotal.WithLabelValues("ok").Inc()
	return c, nil
}
