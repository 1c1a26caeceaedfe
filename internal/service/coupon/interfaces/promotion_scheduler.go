package interfaces

import (
	"context"
	"fmt"
	"time"

	"nexus-coupon/internal/pkg/logger"
	"nexus-coupon/internal/service/coupon/port"
)

const dailyPromotionLock = "daily-promotion-batch"

// DailyPromotionIssuer 由 application.LifecycleService 实现
type DailyPromotionIssuer interface {
	EnsureDailyPromotion(ctx context.Context) (bool, error)
}

// PromotionScheduler 在每天的固定时刻发放促销券批次，多副本之间通过分布式锁互斥
type PromotionScheduler struct {
	issuer   DailyPromotionIssuer
	locker   port.Locker
	at       time.Duration // 距离当天零点的偏移
	location *time.Location
	interval time.Duration
	clock    func() time.Time

	lastDay string
}

// ParseTimeOfDay 解析 "HH:MM" 格式
func ParseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func NewPromotionScheduler(issuer DailyPromotionIssuer, locker port.Locker, at time.Duration, loc *time.Location, interval time.Duration) *PromotionScheduler {
	if locker == nil {
		locker = port.LocalLocker{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &PromotionScheduler{
		issuer:   issuer,
		locker:   locker,
		at:       at,
		location: loc,
		interval: interval,
		clock:    time.Now,
	}
}

// Run 按固定间隔检查是否到达发放时刻，ctx 结束时返回
func (s *PromotionScheduler) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Dur("at", s.at).Str("location", s.location.String()).Msg("✅ Daily promotion scheduler started.")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("🛑 Daily promotion scheduler shutting down.")
			return nil
		}
	}
}

// Tick 执行一次检查，返回本次是否真正发放了批次
func (s *PromotionScheduler) Tick(ctx context.Context) bool {
	now := s.clock().In(s.location)
	day := now.Format(time.DateOnly)
	if day == s.lastDay {
		return false
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	if now.Before(midnight.Add(s.at)) {
		return false
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()
	release, err := s.locker.Acquire(lockCtx, dailyPromotionLock)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("could not acquire daily promotion lock")
		return false
	}
	defer func() {
		if err := release(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to release daily promotion lock")
		}
	}()

	issued, err := s.issuer.EnsureDailyPromotion(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("daily promotion batch failed")
		return false
	}
	s.lastDay = day
	if issued {
		logger.Ctx(ctx).Info().Str("day", day).Msg("daily promotion batch issued")
	}
	return issued
}
