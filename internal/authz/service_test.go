package authz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap must be idempotent: %v", err)
	}
	if err := svc.SetOperatorRoles("mia", []string{"campaign_manager"}); err != nil {
		t.Fatalf("set roles failed: %v", err)
	}
	if err := svc.SetOperatorRoles("rex", []string{"risk_auditor"}); err != nil {
		t.Fatalf("set roles failed: %v", err)
	}

	cases := []struct {
		operator, object, action string
		want                     bool
	}{
		{"mia", "campaign", "write", true},
		{"mia", "campaign", "read", true},
		{"mia", "referral", "read", true},
		{"mia", "referral", "revoke", false},
		{"rex", "referral", "revoke", true},
		{"rex", "Referral", "READ", true},
		{"rex", "campaign", "write", false},
		{"nobody", "campaign", "read", false},
	}
	for _, tc := range cases {
		got, err := svc.EnforceOperator(tc.operator, tc.object, tc.action)
		if err != nil {
			t.Fatalf("enforce %+v failed: %v", tc, err)
		}
		if got != tc.want {
			t.Fatalf("enforce %s %s %s = %v, want %v", tc.operator, tc.object, tc.action, got, tc.want)
		}
	}
}

func TestSetOperatorRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "campaign", "read"); err != nil {
		t.Fatalf("grant ops policy failed: %v", err)
	}
	if err := svc.GrantRolePolicy("audit", "referral", "read"); err != nil {
		t.Fatalf("grant audit policy failed: %v", err)
	}

	if err := svc.SetOperatorRoles("op-2", []string{"ops"}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	if err := svc.SetOperatorRoles("op-2", []string{"audit"}); err != nil {
		t.Fatalf("set second role failed: %v", err)
	}
	access, err := svc.DescribeOperator("op-2")
	if err != nil {
		t.Fatalf("describe operator failed: %v", err)
	}
	if len(access.Roles) != 1 || access.Roles[0] != "role:audit" {
		t.Fatalf("roles want [role:audit], got=%v", access.Roles)
	}
	want := Policy{Subject: "role:audit", Object: "referral", Action: "read"}
	if len(access.Policies) != 1 || access.Policies[0] != want {
		t.Fatalf("policies want [%v], got=%v", want, access.Policies)
	}
	allow, _ := svc.EnforceOperator("op-2", "campaign", "read")
	if allow {
		t.Fatalf("replaced role must not grant access")
	}

	if err := svc.SetOperatorRoles("op-2", []string{"ops", "__anchor__"}); err == nil {
		t.Fatalf("reserved role must be rejected")
	}
	kept, err := svc.DescribeOperator("op-2")
	if err != nil || len(kept.Roles) != 1 || kept.Roles[0] != "role:audit" {
		t.Fatalf("rejected assignment must keep previous roles, got=%+v err=%v", kept, err)
	}

	empty, err := svc.DescribeOperator("nobody")
	if err != nil || len(empty.Roles) != 0 || len(empty.Policies) != 0 {
		t.Fatalf("unknown operator should have no access, got=%+v err=%v", empty, err)
	}
}

func TestOperatorValidation(t *testing.T) {
	if _, err := SubjectForOperator("  "); err == nil {
		t.Fatalf("empty operator id must be rejected")
	}
	if _, err := NormalizeRole("role:"); err == nil {
		t.Fatalf("empty role must be rejected")
	}
	if got, _ := NormalizeRole("risk auditor"); got != "role:risk_auditor" {
		t.Fatalf("unexpected role normalization: %s", got)
	}
}
