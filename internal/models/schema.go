package models

// All returns every persisted model in migration order
func All() []interface{} {
	return []interface{}{
		&UserEntitlements{},
		&InventoryItem{},
		&Scan{},
		&RecipeImage{},
	}
}
