package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	casbinTableName    = "casbin_rule"
	operatorSubjectFmt = "operator:%s"
	rolePrefix         = "role:"
	roleAnchor         = "role:__anchor__"
	wildcard           = "*"
)

const defaultRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`

// Policy 权限策略
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// Service Casbin 授权服务
// 主体为 operator:<id>，资源为 campaign / referral，动作为 read / write / revoke。
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}

	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(defaultRBACModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

var (
	// ErrUnavailable 授权服务未初始化
	ErrUnavailable  = errors.New("authz service unavailable")
	errRoleReserved = errors.New("reserved role is not allowed")
)

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	return nil
}

// Enforce 执行授权判断
func (s *Service) Enforce(sub, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.enforcer.Enforce(strings.TrimSpace(sub), NormalizeObject(obj), NormalizeAction(act))
}

// EnforceOperator 按操作员 ID 判定授权
func (s *Service) EnforceOperator(operatorID, obj, act string) (bool, error) {
	subject, err := SubjectForOperator(operatorID)
	if err != nil {
		return false, err
	}
	return s.Enforce(subject, obj, act)
}

// EnsureRole 登记角色（挂到锚点上），返回规范化后的角色名
func (s *Service) EnsureRole(role string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	normalized, err := normalizeAssignableRole(role)
	if err != nil {
		return "", err
	}
	if _, err := s.enforcer.AddNamedGroupingPolicy("g", normalized, roleAnchor); err != nil {
		return "", fmt.Errorf("register role %s: %w", normalized, err)
	}
	return normalized, nil
}

// GrantRolePolicy 为角色授予 (资源, 动作)，资源为空表示全部资源
func (s *Service) GrantRolePolicy(role, object, action string) error {
	act := NormalizeAction(action)
	if act == "" {
		return fmt.Errorf("action is required")
	}
	normalized, err := s.EnsureRole(role)
	if err != nil {
		return err
	}
	if _, err := s.enforcer.AddPolicy(normalized, NormalizeObject(object), act); err != nil {
		return fmt.Errorf("grant %s %s:%s: %w", normalized, NormalizeObject(object), act, err)
	}
	return nil
}

// SetOperatorRoles 以给定角色整体替换操作员的角色
// 角色全部校验通过后才清理旧角色。
func (s *Service) SetOperatorRoles(operatorID string, roles []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	subject, err := SubjectForOperator(operatorID)
	if err != nil {
		return err
	}
	wanted := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized, err := normalizeAssignableRole(role)
		if err != nil {
			return err
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		wanted = append(wanted, normalized)
	}

	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, subject); err != nil {
		return fmt.Errorf("clear roles of %s: %w", subject, err)
	}
	for _, role := range wanted {
		if _, err := s.EnsureRole(role); err != nil {
			return err
		}
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", subject, role); err != nil {
			return fmt.Errorf("assign %s to %s: %w", role, subject, err)
		}
	}
	return nil
}

// OperatorAccess 操作员当前的角色与生效策略
type OperatorAccess struct {
	Subject  string   `json:"subject"`
	Roles    []string `json:"roles"`
	Policies []Policy `json:"policies"`
}

// DescribeOperator 汇总操作员的角色，以及角色与主体本身授予的策略
func (s *Service) DescribeOperator(operatorID string) (*OperatorAccess, error) {
	subject, err := SubjectForOperator(operatorID)
	if err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	assigned, err := s.enforcer.GetRolesForUser(subject)
	if err != nil {
		return nil, fmt.Errorf("get operator roles failed: %w", err)
	}
	access := &OperatorAccess{Subject: subject, Roles: []string{}, Policies: []Policy{}}
	for _, role := range assigned {
		if !strings.HasPrefix(role, rolePrefix) || role == roleAnchor {
			continue
		}
		access.Roles = append(access.Roles, role)
	}
	sort.Strings(access.Roles)

	for _, sub := range append([]string{subject}, access.Roles...) {
		rules, err := s.enforcer.GetFilteredPolicy(0, sub)
		if err != nil {
			return nil, fmt.Errorf("get policies of %s failed: %w", sub, err)
		}
		for _, rule := range rules {
			if len(rule) < 3 {
				continue
			}
			access.Policies = append(access.Policies, Policy{
				Subject: strings.TrimSpace(rule[0]),
				Object:  NormalizeObject(rule[1]),
				Action:  NormalizeAction(rule[2]),
			})
		}
	}
	sort.Slice(access.Policies, func(i, j int) bool {
		a, b := access.Policies[i], access.Policies[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Object != b.Object {
			return a.Object < b.Object
		}
		return a.Action < b.Action
	})
	return access, nil
}

// SubjectForOperator 生成操作员主体标识
func SubjectForOperator(operatorID string) (string, error) {
	id := strings.TrimSpace(operatorID)
	if id == "" {
		return "", fmt.Errorf("operator id is required")
	}
	return fmt.Sprintf(operatorSubjectFmt, id), nil
}

// NormalizeRole 统一角色名称
func NormalizeRole(role string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(role), " ", "_")
	if normalized == "" {
		return "", fmt.Errorf("role is required")
	}
	if !strings.HasPrefix(normalized, rolePrefix) {
		normalized = rolePrefix + normalized
	}
	if len(normalized) <= len(rolePrefix) {
		return "", fmt.Errorf("role is required")
	}
	return normalized, nil
}

func normalizeAssignableRole(role string) (string, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return "", err
	}
	if normalized == roleAnchor {
		return "", errRoleReserved
	}
	return normalized, nil
}

// NormalizeObject 统一资源名称
func NormalizeObject(object string) string {
	normalized := strings.ToLower(strings.TrimSpace(object))
	if normalized == "" {
		return wildcard
	}
	return normalized
}

// NormalizeAction 统一授权动作
func NormalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}
