package domain

import "strconv"

// CustomSuffix marks the name of a custom-design variant.
const CustomSuffix = " (Custom Design)"

// CartEntry is one row of the cart. A plain entry's identity is its product
// id; a custom entry carries a design reference and a generated identity.
type CartEntry struct {
	Identity        string `json:"identity"`
	ProductID       int64  `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	Price           int64  `json:"price"`
	Description     string `json:"description"`
	ImageURL        string `json:"image_url"`
	Quantity        int    `json:"quantity"`
	CustomDesignRef string `json:"custom_design_ref,omitempty"`
}

// IsCustom reports whether the entry is a custom-design variant.
func (e CartEntry) IsCustom() bool {
	return e.CustomDesignRef != ""
}

// Subtotal returns price * quantity in cents.
func (e CartEntry) Subtotal() int64 {
	return e.Price * int64(e.Quantity)
}

// PlainIdentity returns the identity used by the plain entry of a product.
func PlainIdentity(productID int64) string {
	return strconv.FormatInt(productID, 10)
}

func isPlainIdentity(identity string) bool {
	_, err := strconv.ParseInt(identity, 10, 64)
	return err == nil
}

func entryFromProduct(p Product) CartEntry {
	return CartEntry{
		ProductID:   p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Price:       p.Price,
		Description: p.Description,
		ImageURL:    p.ImageURL,
	}
}
