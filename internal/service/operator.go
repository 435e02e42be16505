package service

import (
	"strings"

	"github.com/referral-rewards/internal/logger"
)

// Authorizer 操作员权限判定
type Authorizer interface {
	EnforceOperator(operatorID, object, action string) (bool, error)
}

// Operator 后台操作员
type Operator struct {
	ID     string
	system bool
}

// NewOperator 创建操作员
func NewOperator(id string) Operator {
	return Operator{ID: strings.TrimSpace(id)}
}

// SystemOperator 系统内部调用（队列消费、定时任务），跳过权限判定
func SystemOperator() Operator {
	return Operator{ID: "system", system: true}
}

// IsSystem 是否为系统调用
func (o Operator) IsSystem() bool {
	return o.system
}

func authorize(authorizer Authorizer, op Operator, object, action string) error {
	if authorizer == nil || op.system {
		return nil
	}
	if op.ID == "" {
		return PermissionDenied("", object, action)
	}
	allowed, err := authorizer.EnforceOperator(op.ID, object, action)
	if err != nil {
		logger.Errorw("authz_enforce_failed", "operator", op.ID, "object", object, "action", action, "error", err)
		return err
	}
	if !allowed {
		logger.Warnw("authz_permission_denied", "operator", op.ID, "object", object, "action", action)
		return PermissionDenied(op.ID, object, action)
	}
	return nil
}
