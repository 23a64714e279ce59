package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 可包装底层错误（Err），支持 errors.Is / errors.As
//
// 使用场景：
//   - 请求校验：INVALID_INPUT（候选集为空、limit 越界）
//   - 元数据存储故障：UNAVAILABLE（唯一会向调用方传播的下游错误）
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - 特征 / 模型错误：UNAVAILABLE（由引擎吞掉并降级）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "INVALID_INPUT"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "feature", "model"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is 按 Module + Code 判等，使包装后的错误仍可用 errors.Is 匹配哨兵错误。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建包装底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore   = "store"   // 存储模块
	ModuleSignal  = "signal"  // 元数据 / 行为信号模块
	ModuleFeature = "feature" // 特征模块
	ModuleModel   = "model"   // 序列模型模块
	ModuleRerank  = "rerank"  // 重排模块
)

// 请求校验错误
var (
	// ErrEmptyCandidates 候选集为空
	ErrEmptyCandidates = NewDomainError(ModuleRerank, ErrorCodeInvalidInput, "rerank: candidate list is empty")

	// ErrInvalidLimit limit 越界
	ErrInvalidLimit = NewDomainError(ModuleRerank, ErrorCodeInvalidInput, "rerank: limit out of range")

	// ErrEmptyUserID 用户 ID 为空
	ErrEmptyUserID = NewDomainError(ModuleRerank, ErrorCodeInvalidInput, "rerank: user id is empty")
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsInvalidInput 检查错误是否为调用方输入错误（HTTP 层映射为 400）
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}
