package queue

import (
	"encoding/json"
	"time"

	"github.com/referral-rewards/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskReferralAttribute 归因事件
	TaskReferralAttribute = constants.TaskReferralAttribute
	// TaskReferralQualify 资格判定事件
	TaskReferralQualify = constants.TaskReferralQualify
	// TaskRewardIssue 发奖任务
	TaskRewardIssue = constants.TaskRewardIssue
	// TaskReferralRevoke 撤销任务
	TaskReferralRevoke = constants.TaskReferralRevoke
)

// PartyPayload 参与方载荷
type PartyPayload struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ReferralAttributePayload 归因任务载荷
type ReferralAttributePayload struct {
	Token     string       `json:"token"`
	Referee   PartyPayload `json:"referee"`
	Source    string       `json:"source"`
	OccurTime time.Time    `json:"occur_time"`
}

// ReferralQualifyPayload 资格判定任务载荷
type ReferralQualifyPayload struct {
	ReferralID uint                   `json:"referral_id"`
	Decision   string                 `json:"decision"`
	Reason     string                 `json:"reason"`
	Evidence   map[string]interface{} `json:"evidence,omitempty"`
	OccurTime  time.Time              `json:"occur_time"`
}

// RewardIssuePayload 发奖任务载荷
type RewardIssuePayload struct {
	ReferralID uint `json:"referral_id"`
}

// ReferralRevokePayload 撤销任务载荷
type ReferralRevokePayload struct {
	ReferralID uint   `json:"referral_id"`
	Reason     string `json:"reason"`
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}

// NewReferralAttributeTask 创建归因任务
func NewReferralAttributeTask(payload ReferralAttributePayload) (*asynq.Task, error) {
	return newTask(TaskReferralAttribute, payload)
}

// NewReferralQualifyTask 创建资格判定任务
func NewReferralQualifyTask(payload ReferralQualifyPayload) (*asynq.Task, error) {
	return newTask(TaskReferralQualify, payload)
}

// NewRewardIssueTask 创建发奖任务
func NewRewardIssueTask(payload RewardIssuePayload) (*asynq.Task, error) {
	return newTask(TaskRewardIssue, payload)
}

// NewReferralRevokeTask 创建撤销任务
func NewReferralRevokeTask(payload ReferralRevokePayload) (*asynq.Task, error) {
	return newTask(TaskReferralRevoke, payload)
}
