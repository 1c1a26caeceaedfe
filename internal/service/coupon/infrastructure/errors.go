package infrastructure

import (
	stderrors "errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// MySQL 错误码
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// isDuplicateKey 判断是否违反了唯一约束。
// 开启 TranslateError 后 gorm 会统一成 ErrDuplicatedKey，这里同时兼容原始驱动错误。
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if stderrors.As(err, &myErr) {
		return myErr.Number == mysqlErrDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isTransientConflict 判断是否是可以重试的锁竞争错误。
func isTransientConflict(err error) bool {
	var myErr *mysql.MySQLError
	if stderrors.As(err, &myErr) {
		return myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWaitTimeout
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}
