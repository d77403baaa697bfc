package model

import (
	"fmt"
	"sync"
)

// DefaultMaxErrors Summary 默认保留的错误条数
const DefaultMaxErrors = 500

// KeyError 单个 key 变更失败
type KeyError struct {
	Key     string `json:"key"`
	Message string `json:"error"`
}

func (e KeyError) Error() string {
	return fmt.Sprintf("key %q: %s", e.Key, e.Message)
}

// Summary 变更结果统计
// 计数不设上限，errors 只保留最近 maxErrors 条且保持顺序
type Summary struct {
	mu        sync.RWMutex
	processed int64
	succeed   int64
	failed    int64
	errors    []KeyError
	maxErrors int
}

// SummarySnapshot Summary 的只读快照
type SummarySnapshot struct {
	Processed int64      `json:"processed"`
	Succeed   int64      `json:"succeed"`
	Failed    int64      `json:"failed"`
	Errors    []KeyError `json:"errors"`
}

// NewSummary 创建 Summary，maxErrors <= 0 时使用默认值
func NewSummary(maxErrors int) *Summary {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	return &Summary{maxErrors: maxErrors}
}

// AddSuccess 记录 n 个成功的 key
func (s *Summary) AddSuccess(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.succeed += int64(n)
	s.processed += int64(n)
	s.mu.Unlock()
}

// AddFailure 记录一个失败的 key
func (s *Summary) AddFailure(key string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed++
	s.processed++
	if len(s.errors) >= s.maxErrors {
		// 丢弃最旧的一条
		copy(s.errors, s.errors[1:])
		s.errors = s.errors[:len(s.errors)-1]
	}
	s.errors = append(s.errors, KeyError{Key: key, Message: msg})
}

func (s *Summary) Processed() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed
}

func (s *Summary) Succeed() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.succeed
}

func (s *Summary) Failed() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}

// Errors 返回错误列表的拷贝
func (s *Summary) Errors() []KeyError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]KeyError, len(s.errors))
	copy(out, s.errors)
	return out
}

// Snapshot 返回当前统计的拷贝
func (s *Summary) Snapshot() SummarySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	errs := make([]KeyError, len(s.errors))
	copy(errs, s.errors)
	return SummarySnapshot{
		Processed: s.processed,
		Succeed:   s.succeed,
		Failed:    s.failed,
		Errors:    errs,
	}
}
