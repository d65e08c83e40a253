// Package catalog is the storefront's fixed product list.
package catalog

import (
	"strconv"

	apperrors "github.com/Noobiez16/SubliGraphic/pkg/errors"

	"github.com/Noobiez16/SubliGraphic/internal/domain"
)

var products = []domain.Product{
	{
		ID:          1,
		Name:        "Classic Ceramic Mug",
		Category:    "Mugs",
		Price:       1499,
		Description: "A timeless 11oz ceramic mug, perfect for your morning coffee. Fully customizable with your own design. Dishwasher and microwave safe.",
		ImageURL:    "https://picsum.photos/seed/mug1/600/600",
	},
	{
		ID:          2,
		Name:        "Stainless Steel Tumbler",
		Category:    "Tumblers",
		Price:       2499,
		Description: "Keep your drinks hot or cold for hours with this 20oz double-wall insulated stainless steel tumbler. Comes with a clear, splash-proof lid.",
		ImageURL:    "https://picsum.photos/seed/tumbler1/600/600",
	},
	{
		ID:          3,
		Name:        "Matte Finish Mug",
		Category:    "Mugs",
		Price:       1699,
		Description: "A modern take on the classic mug, featuring a smooth matte finish. This 12oz mug feels as good as it looks.",
		ImageURL:    "https://picsum.photos/seed/mug2/600/600",
	},
	{
		ID:          4,
		Name:        "Travel Coffee Tumbler",
		Category:    "Tumblers",
		Price:       2899,
		Description: "The perfect companion for your commute. This 16oz tumbler fits in most car cup holders and features a leak-proof flip lid.",
		ImageURL:    "https://picsum.photos/seed/tumbler2/600/600",
	},
	{
		ID:          5,
		Name:        "Enamel Camping Mug",
		Category:    "Mugs",
		Price:       1999,
		Description: "Lightweight and durable, this enamel mug is ideal for camping, hiking, or any outdoor adventure. Holds 12oz of your favorite beverage.",
		ImageURL:    "https://picsum.photos/seed/mug3/600/600",
	},
	{
		ID:          6,
		Name:        "Slim Can Cooler",
		Category:    "Tumblers",
		Price:       1899,
		Description: "Keep your slim cans perfectly chilled. Ideal for seltzers and energy drinks, this cooler uses superior insulation technology.",
		ImageURL:    "https://picsum.photos/seed/tumbler3/600/600",
	},
	{
		ID:          7,
		Name:        "Two-Tone Accent Mug",
		Category:    "Mugs",
		Price:       1599,
		Description: "Add a splash of color to your day. This 11oz mug features a colored interior and handle, creating a fun contrast.",
		ImageURL:    "https://picsum.photos/seed/mug4/600/600",
	},
	{
		ID:          8,
		Name:        "Wine Tumbler",
		Category:    "Tumblers",
		Price:       2299,
		Description: "Enjoy your wine anywhere, anytime. This 12oz stemless wine tumbler maintains the perfect temperature and prevents spills.",
		ImageURL:    "https://picsum.photos/seed/tumbler4/600/600",
	},
}

// Catalog serves products by id.
type Catalog struct {
	list []domain.Product
	byID map[int64]domain.Product
}

// New returns the storefront catalog.
func New() *Catalog {
	return FromProducts(products)
}

// FromProducts builds a catalog over an arbitrary product list.
func FromProducts(list []domain.Product) *Catalog {
	c := &Catalog{list: list, byID: make(map[int64]domain.Product, len(list))}
	for _, p := range list {
		c.byID[p.ID] = p
	}
	return c
}

// Product returns the product with the given id.
func (c *Catalog) Product(id int64) (domain.Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return domain.Product{}, apperrors.NotFound("product", strconv.FormatInt(id, 10))
	}
	return p, nil
}

// Products returns every product in display order.
func (c *Catalog) Products() []domain.Product {
	out := make([]domain.Product, len(c.list))
	copy(out, c.list)
	return out
}
