package enums

// PointsTransactionType describes a loyalty ledger entry.
type PointsTransactionType string

const (
	PointsEarnOrder   PointsTransactionType = "earn_order"
	PointsEarnCheckIn PointsTransactionType = "earn_check_in"
	PointsRedeem      PointsTransactionType = "redeem"
	PointsAdjustment  PointsTransactionType = "adjustment"
)

func (p PointsTransactionType) String() string { return string(p) }

// IsCredit reports whether the entry adds to lifetime points.
func (p PointsTransactionType) IsCredit() bool {
	return p == PointsEarnOrder || p == PointsEarnCheckIn
}
