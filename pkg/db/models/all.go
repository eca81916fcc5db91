package models

// All lists every persisted model in dependency order, for sqlite AutoMigrate.
func All() []any {
	return []any{
		&Store{},
		&Product{},
		&ProductImage{},
		&ProductInstance{},
		&User{},
		&Cart{},
		&CartItem{},
		&OTPVerification{},
		&SMSProviderConfig{},
		&SMSMessage{},
		&Order{},
		&OrderItem{},
		&PaymentGateway{},
		&Payment{},
	}
}
