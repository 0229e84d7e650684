package enums

// ProductKind classifies catalog items. Drink and cannabis items are age
// restricted; only drinks with a positive ABV feed the sobriety monitor.
type ProductKind string

const (
	ProductKindFood     ProductKind = "food"
	ProductKindDrink    ProductKind = "drink"
	ProductKindCannabis ProductKind = "cannabis"
)

var validProductKinds = []ProductKind{ProductKindFood, ProductKindDrink, ProductKindCannabis}

func (k ProductKind) String() string { return string(k) }

func (k ProductKind) IsValid() bool {
	_, err := ParseProductKind(string(k))
	return err == nil
}

// AgeRestricted reports whether buying the kind requires age verification.
func (k ProductKind) AgeRestricted() bool {
	return k == ProductKindDrink || k == ProductKindCannabis
}

func ParseProductKind(value string) (ProductKind, error) {
	return parse(value, validProductKinds, "product kind")
}
