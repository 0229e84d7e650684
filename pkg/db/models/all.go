package models

// All lists every persisted model, in dependency order, for AutoMigrate in
// sqlite mode and tests.
func All() []any {
	return []any{
		&Venue{},
		&ProductCategory{},
		&Product{},
		&Profile{},
		&OTPCode{},
		&Order{},
		&OrderItem{},
		&AbandonedCart{},
		&BiometricProfile{},
		&DrinkingSession{},
		&DrinkRecord{},
		&BiometricReading{},
		&SobrietyAlert{},
		&LoyaltyTier{},
		&UserLoyalty{},
		&PointsTransaction{},
		&CheckIn{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
