package models

import "strings"

// Coupon is a flat-amount promotion with a bounded number of uses.
type Coupon struct {
	BaseModel
	Code           string  `gorm:"uniqueIndex" json:"code"`
	MinAmount      float64 `json:"minAmount"`
	DiscountAmount float64 `json:"discountAmount"`
	UsageLimit     int     `json:"usageLimit"`
	UsedCount      int     `gorm:"check:used_count <= usage_limit" json:"usedCount"`
	IsActive       bool    `json:"isActive"`
}

// Exhausted reports whether every allowed use has been consumed.
func (c *Coupon) Exhausted() bool {
	return c.UsedCount >= c.UsageLimit
}

// UsageLeft returns how many more orders may use the coupon.
func (c *Coupon) UsageLeft() int {
	if left := c.UsageLimit - c.UsedCount; left > 0 {
		return left
	}
	return 0
}

// NormalizeCouponCode canonicalizes a user-supplied coupon code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
