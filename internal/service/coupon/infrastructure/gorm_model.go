package infrastructure

import (
	"time"

	"gorm.io/gorm"
	"nexus-coupon/internal/service/coupon/domain"
)

// CouponModel 对应数据库中的 coupon 表
type CouponModel struct {
	CouponCode     string            `gorm:"column:coupon_code;primaryKey;size:32"`
	CouponName     domain.CouponKind `gorm:"column:coupon_name;size:32;not null;index:idx_coupon_kind_issued,priority:1"`
	DiscountAmount int64             `gorm:"column:discount_amount;not null"`
	IssueLimit     int64             `gorm:"column:issue_limit;not null;default:0"`
	IssuedAt       time.Time         `gorm:"column:issued_at;not null;index:idx_coupon_kind_issued,priority:2"`
	ExpiredAt      time.Time         `gorm:"column:expired_at;not null"`
	MinOrderPrice  int64             `gorm:"column:min_order_price;not null"`
}

// TableName 指定 GORM 应该使用的表名
func (CouponModel) TableName() string {
	return "coupon"
}

// CouponReceiptModel 对应数据库中的 coupon_receipt 表
// (coupon_code, consumer_id) 作为联合主键，数据库层面保证唯一。
type CouponReceiptModel struct {
	CouponCode string    `gorm:"column:coupon_code;primaryKey;size:32"`
	ConsumerID int64     `gorm:"column:consumer_id;primaryKey;autoIncrement:false;index:idx_receipt_consumer_use,priority:1"`
	IsUse      bool      `gorm:"column:is_use;not null;default:false;index:idx_receipt_consumer_use,priority:2"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`

	Coupon CouponModel `gorm:"foreignKey:CouponCode;references:CouponCode;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
}

// TableName 指定 GORM 应该使用的表名
func (CouponReceiptModel) TableName() string {
	return "coupon_receipt"
}

// AutoMigrate 创建或更新表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CouponModel{}, &CouponReceiptModel{})
}
