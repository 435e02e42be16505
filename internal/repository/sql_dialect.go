package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

func likeOperatorByDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return "ILIKE"
	default:
		return "LIKE"
	}
}

// signedAmountExpr 生成带方向符号的金额表达式，占位参数为 PLUS 方向编码。
func signedAmountExpr(directionColumn, amountColumn string) string {
	return fmt.Sprintf("CASE WHEN %s = ? THEN %s ELSE -%s END", directionColumn, amountColumn, amountColumn)
}
