package domain

import (
	"time"

	"github.com/google/uuid"
)

// StageKind 流水线阶段类型
type StageKind string

const (
	StageVerify   StageKind = "verify"    // 有效性校验
	StageDeepDive StageKind = "deep_dive" // 多维评分
	StageTag      StageKind = "tag"       // 聚类标签
)

// AllStageKinds 所有阶段，按流水线顺序
var AllStageKinds = []StageKind{StageVerify, StageDeepDive, StageTag}

// StagePayload 阶段负载，按阶段类型区分的标记变体
type StagePayload interface {
	Kind() StageKind
}

// VerifyPayload 校验阶段负载
type VerifyPayload struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason"`
}

func (VerifyPayload) Kind() StageKind { return StageVerify }

// DeepDivePayload 评分阶段负载。Scores为维度名到得分的映射。
type DeepDivePayload struct {
	Scores map[string]float64 `json:"scores"`
	Reason string             `json:"reason"`
}

func (DeepDivePayload) Kind() StageKind { return StageDeepDive }

// TagPayload 标签阶段负载
type TagPayload struct {
	Tag    string `json:"tag"`
	Reason string `json:"reason"`
}

func (TagPayload) Kind() StageKind { return StageTag }

// StageResult 一次阶段计算的结果，带代数标记。
// 同一(document, kind)的历史结果全部保留用于审计；
// 只有代数落在[文档ResultFloor, 文档Generation]内的最新一条是活动结果。
type StageResult struct {
	ID           string
	DocumentID   string
	Generation   int64
	StageKind    StageKind
	Success      bool
	Payload      StagePayload
	ErrorMessage string
	CreatedAt    time.Time
}

// NewStageResult 创建成功的阶段结果
func NewStageResult(documentID string, generation int64, payload StagePayload) *StageResult {
	return &StageResult{
		ID:         "sr_" + uuid.New().String(),
		DocumentID: documentID,
		Generation: generation,
		StageKind:  payload.Kind(),
		Success:    true,
		Payload:    payload,
		CreatedAt:  time.Now(),
	}
}

// NewFailedStageResult 创建失败的阶段结果
func NewFailedStageResult(documentID string, generation int64, kind StageKind, errMsg string) *StageResult {
	return &StageResult{
		ID:           "sr_" + uuid.New().String(),
		DocumentID:   documentID,
		Generation:   generation,
		StageKind:    kind,
		Success:      false,
		ErrorMessage: errMsg,
		CreatedAt:    time.Now(),
	}
}

// Validate 验证阶段结果
func (r *StageResult) Validate() error {
	if r.DocumentID == "" {
		return ErrInvalidDocumentID
	}
	switch r.StageKind {
	case StageVerify, StageDeepDive, StageTag:
	default:
		return ErrInvalidStageKind
	}
	if r.Success {
		if r.Payload == nil {
			return ErrMissingStagePayload
		}
		if r.Payload.Kind() != r.StageKind {
			return ErrStagePayloadMismatch
		}
	}
	return nil
}

// DocumentStatus 文档展示状态，由各阶段活动结果推导
type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"  // 尚无校验结果
	StatusIncluded DocumentStatus = "included" // 校验通过，评分未到
	StatusExcluded DocumentStatus = "excluded" // 校验未通过，终态
	StatusComplete DocumentStatus = "complete" // 校验通过且评分已到
	StatusError    DocumentStatus = "error"    // 任一阶段失败
)

// ActiveResults 文档当前代数窗口内各阶段的活动结果。
// 缺失的阶段为nil。
type ActiveResults struct {
	Verify   *StageResult
	DeepDive *StageResult
	Tag      *StageResult
}

// Get 按阶段取活动结果
func (a ActiveResults) Get(kind StageKind) *StageResult {
	switch kind {
	case StageVerify:
		return a.Verify
	case StageDeepDive:
		return a.DeepDive
	case StageTag:
		return a.Tag
	}
	return nil
}

// set 写入某阶段的活动结果
func (a *ActiveResults) set(r *StageResult) {
	switch r.StageKind {
	case StageVerify:
		a.Verify = r
	case StageDeepDive:
		a.DeepDive = r
	case StageTag:
		a.Tag = r
	}
}

// NewActiveResults 从历史结果中挑出活动结果：
// 代数在[floor, current]内，且同阶段取代数最大的一条。
func NewActiveResults(doc *Document, results []*StageResult) ActiveResults {
	var active ActiveResults
	for _, r := range results {
		if r.DocumentID != doc.ID {
			continue
		}
		if r.Generation < doc.ResultFloor || r.Generation > doc.Generation {
			continue
		}
		if cur := active.Get(r.StageKind); cur == nil || r.Generation > cur.Generation ||
			(r.Generation == cur.Generation && r.CreatedAt.After(cur.CreatedAt)) {
			active.set(r)
		}
	}
	return active
}

// DeriveStatus 按固定优先级推导展示状态：
//  1. error    — 任一活动结果失败
//  2. pending  — 尚无校验结果
//  3. excluded — 校验判定无效（终态，不再有后续阶段）
//  4. complete — 校验有效且评分已到
//  5. included — 校验有效，评分未到
func DeriveStatus(active ActiveResults) DocumentStatus {
	for _, r := range []*StageResult{active.Verify, active.DeepDive, active.Tag} {
		if r != nil && !r.Success {
			return StatusError
		}
	}
	if active.Verify == nil {
		return StatusPending
	}
	verify, ok := active.Verify.Payload.(VerifyPayload)
	if !ok {
		return StatusError
	}
	if !verify.IsValid {
		return StatusExcluded
	}
	if active.DeepDive != nil {
		return StatusComplete
	}
	return StatusIncluded
}

// StatusPriority 评审队列排序优先级，数值小的更需要关注：
// complete < error < excluded < included < pending。
func StatusPriority(s DocumentStatus) int {
	switch s {
	case StatusComplete:
		return 0
	case StatusError:
		return 1
	case StatusExcluded:
		return 2
	case StatusIncluded:
		return 3
	case StatusPending:
		return 4
	}
	return 5
}
