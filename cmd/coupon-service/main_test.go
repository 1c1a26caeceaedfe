package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"nexus-coupon/internal/pkg/bootstrap"
	"nexus-coupon/internal/service/coupon/domain"
)

func TestPolicyFromDefaults(t *testing.T) {
	policy := policyFrom(bootstrap.Default().Coupon)
	assert.Equal(t, domain.DefaultIssuePolicy(), policy)
}

func TestTopicsFromOverrides(t *testing.T) {
	topics := topicsFrom(bootstrap.TopicsConfig{ReduceCoupon: "orders.reduce-coupon"})
	assert.Equal(t, "orders.reduce-coupon", topics.ReduceCoupon)
	assert.Equal(t, "reduce-stock", topics.ReduceStock)
}
