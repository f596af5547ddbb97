package catalog

var defaultProducts = []Product{
	{ID: 1, Name: "Luxury Gold Watch", Price: 299.99, Category: "watches", Image: "images/product1.jpg",
		Description: "Experience luxury and elegance with our premium gold watch. Crafted with the finest materials and precision engineering, this timepiece is perfect for those who appreciate fine craftsmanship. Features a gold-plated case, genuine leather strap, and water-resistant design."},
	{ID: 2, Name: "Designer Handbag", Price: 199.99, Category: "bags", Image: "images/product2.jpg",
		Description: "Chic designer handbag with high-quality leather and thoughtfully organized compartments."},
	{ID: 3, Name: "Premium Sunglasses", Price: 149.99, Category: "accessories", Image: "images/product3.jpg",
		Description: "UV-protective lenses, lightweight frame, perfect for sunny days."},
	{ID: 4, Name: "Luxury Perfume", Price: 89.99, Category: "accessories", Image: "images/product4.jpg",
		Description: "A timeless scent with warm and fresh notes."},
	{ID: 5, Name: "Diamond Necklace", Price: 499.99, Category: "jewelry", Image: "images/product5.jpg",
		Description: "Sparkling diamond necklace crafted for special occasions."},
	{ID: 6, Name: "Silver Watch", Price: 399.99, Category: "watches", Image: "images/product6.jpg",
		Description: "Sleek silver watch with modern mechanics and polished finish."},
	{ID: 7, Name: "Leather Tote", Price: 249.99, Category: "bags", Image: "images/product7.jpg",
		Description: "Spacious leather tote with durable stitching and stylish design."},
	{ID: 8, Name: "Designer Belt", Price: 79.99, Category: "accessories", Image: "images/product8.jpg",
		Description: "Classic designer belt with premium buckle."},
}

// Default returns the built-in UrbenShop catalog.
func Default() *Catalog {
	c, err := New(defaultProducts)
	if err != nil {
		panic(err)
	}
	return c
}
