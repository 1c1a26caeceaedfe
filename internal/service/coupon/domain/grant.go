package domain

// GrantOutcome 是原子发放的结果，替代吞掉异常只打日志的做法。
type GrantOutcome int

const (
	GrantGranted GrantOutcome = iota + 1
	GrantSoldOut
	GrantDuplicate
	GrantConflict // 瞬时竞争，调用方决定是否重试
)

func (o GrantOutcome) String() string {
	switch o {
	case GrantGranted:
		return "granted"
	case GrantSoldOut:
		return "sold_out"
	case GrantDuplicate:
		return "duplicate"
	case GrantConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Err 把非成功的结果转换为领域错误。
func (o GrantOutcome) Err() error {
	switch o {
	case GrantGranted:
		return nil
	case GrantSoldOut:
		return ErrSoldOut
	case GrantDuplicate:
		return ErrAlreadyReceivedPromotion
	case GrantConflict:
		return ErrGrantConflict
	default:
		return ErrGrantConflict
	}
}

// PrecheckStatus 是领取促销券前的预检查结果。
type PrecheckStatus struct {
	Open            bool
	SoldOut         bool
	AlreadyReceived bool
}
