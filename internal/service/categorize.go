package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
)

// Food categories, in tie-break order
const (
	CategoryProduce    = "Produce"
	CategoryDairyEggs  = "Dairy & Eggs"
	CategoryMeat       = "Meat & Poultry"
	CategorySeafood    = "Seafood"
	CategoryGrains     = "Grains & Bakery"
	CategoryPantry     = "Pantry"
	CategoryCondiments = "Condiments & Sauces"
	CategoryBeverages  = "Beverages"
	CategorySnacks     = "Snacks"
	CategoryFrozen     = "Frozen"
	CategoryOther      = "Other"
)

// Categories lists every category a food can be assigned
var Categories = []string{
	CategoryProduce, CategoryDairyEggs, CategoryMeat, CategorySeafood, CategoryGrains,
	CategoryPantry, CategoryCondiments, CategoryBeverages, CategorySnacks, CategoryFrozen, CategoryOther,
}

var categoryKeywords = map[string][]string{
	CategoryProduce: {
		"apple", "banana", "orange", "lemon", "lime", "grape", "berry", "strawberry", "blueberry",
		"raspberry", "peach", "pear", "plum", "mango", "pineapple", "melon", "watermelon", "avocado",
		"tomato", "potato", "sweet potato", "onion", "garlic", "carrot", "celery", "lettuce", "spinach",
		"kale", "cabbage", "broccoli", "cauliflower", "pepper", "bell pepper", "cucumber", "zucchini",
		"eggplant", "mushroom", "corn", "pea", "green bean", "asparagus", "ginger", "herb", "basil",
		"cilantro", "parsley", "scallion", "leek", "radish", "beet", "squash", "pumpkin", "cherry",
	},
	CategoryDairyEggs: {
		"milk", "cheese", "cheddar", "mozzarella", "parmesan", "feta", "yogurt", "yoghurt", "butter",
		"cream", "sour cream", "cream cheese", "egg", "cottage cheese", "ricotta", "kefir", "ghee",
	},
	CategoryMeat: {
		"chicken", "beef", "pork", "lamb", "turkey", "bacon", "ham", "sausage", "steak", "ground beef",
		"veal", "duck", "salami", "pepperoni", "prosciutto", "chorizo", "meatball", "hot dog",
	},
	CategorySeafood: {
		"fish", "salmon", "tuna", "cod", "tilapia", "shrimp", "prawn", "crab", "lobster", "scallop",
		"clam", "mussel", "oyster", "sardine", "anchovy", "trout", "halibut", "squid",
	},
	CategoryGrains: {
		"bread", "bagel", "tortilla", "pita", "bun", "roll", "rice", "pasta", "spaghetti", "noodle",
		"oat", "oatmeal", "cereal", "flour", "quinoa", "couscous", "barley", "croissant", "muffin",
	},
	CategoryPantry: {
		"bean", "black bean", "chickpea", "lentil", "canned", "broth", "stock", "sugar", "salt",
		"oil", "olive oil", "vinegar", "honey", "peanut butter", "jam", "jelly", "spice", "cinnamon",
		"baking soda", "baking powder", "yeast", "nut", "almond", "walnut", "coconut milk", "tofu",
	},
	CategoryCondiments: {
		"ketchup", "mustard", "mayonnaise", "mayo", "soy sauce", "hot sauce", "sriracha", "salsa",
		"sauce", "dressing", "bbq sauce", "pesto", "relish", "hummus", "tahini", "marinara",
	},
	CategoryBeverages: {
		"juice", "orange juice", "soda", "water", "sparkling water", "coffee", "tea", "beer", "wine",
		"kombucha", "lemonade", "energy drink", "almond milk", "oat milk", "soy milk",
	},
	CategorySnacks: {
		"chip", "potato chip", "tortilla chip", "cracker", "cookie", "pretzel", "popcorn",
		"granola bar", "candy", "chocolate", "trail mix", "snack",
	},
	CategoryFrozen: {
		"frozen", "ice cream", "frozen pizza", "popsicle", "frozen vegetable", "frozen berries",
		"ice",
	},
}

// Categorizer assigns a category from the keyword table, asking the chat model
// only when the table has no match
type Categorizer struct {
	chat      ChatClient
	model     string
	aiEnabled bool
	log       *logrus.Entry
}

// NewCategorizer creates a new Categorizer instance. chat may be nil.
func NewCategorizer(chat ChatClient, model string, aiEnabled bool) *Categorizer {
	return &Categorizer{
		chat:      chat,
		model:     model,
		aiEnabled: aiEnabled && chat != nil,
		log:       logger.Component("categorize"),
	}
}

// Categorize returns the category of a food name
func (c *Categorizer) Categorize(ctx context.Context, foodName string) (string, error) {
	name := normalizeText(foodName)
	if name == "" {
		return "", validationError("foodName is required")
	}

	if category := CategorizeByKeyword(name); category != CategoryOther || !c.aiEnabled {
		return category, nil
	}

	var reply struct {
		Category string `json:"category"`
	}
	messages := []ChatMessage{
		{Role: "system", Content: "Classify a grocery item into exactly one of these categories: " +
			strings.Join(Categories, ", ") + `. Respond with JSON {"category":"<category>"}.`},
		{Role: "user", Content: foodName},
	}
	if err := c.chat.CompleteJSON(ctx, c.model, messages, &reply); err != nil {
		c.log.WithError(err).WithField("food", name).Warn("ai categorization failed, using Other")
		return CategoryOther, nil
	}
	if category, ok := canonicalCategory(reply.Category); ok {
		return category, nil
	}
	return CategoryOther, nil
}

// CategorizeByKeyword matches the longest keyword found as a whole word sequence
// in the normalized name; ties go to the earlier category
func CategorizeByKeyword(foodName string) string {
	padded := " " + normalizeText(foodName) + " "
	best, bestLen := CategoryOther, 0
	for _, category := range Categories {
		for _, kw := range categoryKeywords[category] {
			if len(kw) <= bestLen {
				continue
			}
			if containsWord(padded, kw) {
				best, bestLen = category, len(kw)
			}
		}
	}
	return best
}

func containsWord(padded, kw string) bool {
	for _, form := range []string{kw, kw + "s", kw + "es"} {
		if strings.Contains(padded, " "+form+" ") {
			return true
		}
	}
	if strings.HasSuffix(kw, "y") {
		return strings.Contains(padded, " "+strings.TrimSuffix(kw, "y")+"ies ")
	}
	return false
}

func canonicalCategory(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(c, s) {
			return c, true
		}
	}
	return "", false
}
