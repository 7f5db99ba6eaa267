package domain

// DefaultCategories is the built-in set used when neither the local cache
// nor the remote store has categories. A fresh copy is returned on every
// call.
func DefaultCategories() []Category {
	return []Category{
		{ID: "1", Name: "Salário", Icon: "Wallet", Color: ColorEmerald, Type: Income},
		{ID: "2", Name: "Freelance", Icon: "Briefcase", Color: ColorBlue, Type: Income},
		{ID: "3", Name: "Investimentos", Icon: "TrendingUp", Color: ColorViolet, Type: Income},
		{ID: "4", Name: "Alimentação", Icon: "Utensils", Color: ColorAmber, Type: Expense},
		{ID: "5", Name: "Moradia", Icon: "Home", Color: ColorRose, Type: Expense},
		{ID: "6", Name: "Transporte", Icon: "Car", Color: ColorCyan, Type: Expense},
		{ID: "7", Name: "Lazer", Icon: "Gamepad2", Color: ColorPink, Type: Expense},
		{ID: "8", Name: "Saúde", Icon: "HeartPulse", Color: ColorSlate, Type: Expense},
		{ID: "9", Name: "Energia", Icon: "Zap", Color: ColorAmber, Type: Expense},
	}
}
