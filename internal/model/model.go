package model

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Instrument{},
		&InstrumentImage{},
		&Favorite{},
		&CartItem{},
		&Order{},
		&ViewHistory{},
		&Notification{},
	}
}
