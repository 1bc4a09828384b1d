package embedding

import (
	"errors"
	"fmt"
)

// ErrInvalidInput 表示待向量化的文本为空或仅含空白。
// 该错误不会触发重试，直接返回给调用方。
var ErrInvalidInput = errors.New("待向量化文本为空")

// MalformedResponseError 表示 Embedding API 返回了无法识别的响应结构。
// 解析只接受封闭的已知结构集合，识别不出就报错，绝不猜测。
type MalformedResponseError struct {
	Detail string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("无法识别的 Embedding API 响应结构: %s", e.Detail)
}

// UnavailableError 表示重试次数耗尽后 Embedding 服务仍不可用，
// 携带最后一次的底层错误。
type UnavailableError struct {
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("embedding 服务不可用（重试 %d 次后放弃）: %v", e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
