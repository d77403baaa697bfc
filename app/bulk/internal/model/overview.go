package model

// Overview 推送给调用方的任务快照
type Overview struct {
	ID         string           `json:"id"`
	DatabaseID string           `json:"databaseId"`
	Type       MutationKind     `json:"type"`
	Status     Status           `json:"status"`
	Filter     Filter           `json:"filter"`
	Duration   int64            `json:"duration"` // 毫秒
	Progress   ProgressSnapshot `json:"progress"`
	Summary    SummarySnapshot  `json:"summary"`
	Error      string           `json:"error,omitempty"`
}
