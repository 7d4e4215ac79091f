package domain

// BulkTier prices a fixed quantity of a product as a single bundle. The
// total price covers exactly Quantity units; the effective unit price for a
// qualifying order line is TotalPrice / Quantity.
type BulkTier struct {
	Quantity   int64 `firestore:"quantity" json:"quantity"`
	TotalPrice int64 `firestore:"price" json:"price"`
}

// Product is the authoritative catalog record consulted during price
// verification. Only the fields the order pipeline needs are modelled here;
// presentation data (images, descriptions) lives with the catalog subsystem.
type Product struct {
	ID        string     `firestore:"-" json:"id"`
	Name      string     `firestore:"name" json:"name"`
	UnitPrice int64      `firestore:"price" json:"price"`
	Stock     int64      `firestore:"stock" json:"stock"`
	BulkTiers []BulkTier `firestore:"bulkPricing,omitempty" json:"bulkPricing,omitempty"`
}

// TierFor returns the bulk tier with the largest quantity threshold that does
// not exceed the requested quantity, or false when no tier applies.
func (p Product) TierFor(quantity int64) (BulkTier, bool) {
	var best BulkTier
	found := false
	for _, tier := range p.BulkTiers {
		if tier.Quantity <= 0 || tier.Quantity > quantity {
			continue
		}
		if !found || tier.Quantity > best.Quantity {
			best = tier
			found = true
		}
	}
	return best, found
}
