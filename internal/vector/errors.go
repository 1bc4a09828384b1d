package vector

import "fmt"

// StorageError 表示向量存储的底层读写失败（MySQL 或 Elasticsearch）。
// 前台相似度查询会把它上抛给调用方；建议型检查路径捕获后降级为空结果。
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("向量存储操作 %s 失败: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
